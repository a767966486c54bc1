// Package model defines the domain types shared across services.
package model

// Status is the attendance state recorded for a student on a date.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// DateLayout is the calendar-date form used in attendance keys and queries.
// ISO dates compare correctly as strings, which the range report relies on.
const DateLayout = "2006-01-02"

// Student is a persisted student record, keyed as student:<id>.
type Student struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	FatherName   string `json:"fatherName"`
	Surname      string `json:"surname"`
	DateOfBirth  string `json:"dateOfBirth"`
	MobileNumber string `json:"mobileNumber"`
	Standard     int    `json:"standard"`
	Address      string `json:"address"`
	School       string `json:"school,omitempty"`
	StudentPhoto string `json:"studentPhoto,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// FullName composes the display name from the three name parts.
func (s Student) FullName() string {
	name := s.FirstName
	if s.FatherName != "" {
		name += " " + s.FatherName
	}
	if s.Surname != "" {
		name += " " + s.Surname
	}
	return name
}

// AttendanceRecord is one mark for one student on one date, keyed as
// attendance:<date>:<studentId>. Re-marking the same pair overwrites.
type AttendanceRecord struct {
	StudentID string `json:"studentId"`
	Date      string `json:"date"`
	Status    Status `json:"status"`
	MarkedAt  string `json:"markedAt"`
}

// Class is one entry of the class configuration stored under the
// "classes" key. The whole list is replaced on save.
type Class struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Standard int    `json:"standard"`
}

// RosterEntry is a student joined with their mark for a given date.
// Status is nil when the student is unmarked.
type RosterEntry struct {
	Student
	Status   *Status `json:"status"`
	MarkedAt *string `json:"markedAt"`
}

// ReportRow is the per-student output of the range report. Derived,
// never persisted.
type ReportRow struct {
	StudentID            string  `json:"studentId"`
	FirstName            string  `json:"firstName"`
	FatherName           string  `json:"fatherName"`
	Surname              string  `json:"surname"`
	Standard             int     `json:"standard"`
	MobileNumber         string  `json:"mobileNumber"`
	PresentDays          int     `json:"presentDays"`
	AbsentDays           int     `json:"absentDays"`
	TotalDays            int     `json:"totalDays"`
	AttendancePercentage float64 `json:"attendancePercentage"`
}

// ClassRollup aggregates report rows per standard.
type ClassRollup struct {
	Standard      int     `json:"standard"`
	TotalStudents int     `json:"totalStudents"`
	AvgAttendance float64 `json:"avgAttendance"`
}

// DashboardStats are today's counters shown on the admin landing page.
type DashboardStats struct {
	TotalStudents   int         `json:"totalStudents"`
	PresentToday    int         `json:"presentToday"`
	AbsentToday     int         `json:"absentToday"`
	StudentsByClass map[int]int `json:"studentsByClass"`
}

// AdminUser is an administrator account, keyed as user:<email>.
// The password is stored as a bcrypt hash and never serialized back
// to API clients.
type AdminUser struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    string `json:"createdAt"`
}
