// Package attendance implements the aggregation core: daily rosters,
// mark and bulk-mark writes, range reports, class rollups, and the
// dashboard counters. All reads are full prefix scans joined in memory,
// which is fine at per-school register volumes.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"attendance-register/internal/kvstore"
	"attendance-register/internal/model"
	"attendance-register/internal/student"
)

var (
	// ErrInvalidRange is returned when startDate sorts after endDate.
	ErrInvalidRange = errors.New("startDate must not be after endDate")
	// ErrInvalidMark wraps validation failures on mark writes so
	// handlers can map them to 400 rather than 500.
	ErrInvalidMark = errors.New("invalid mark")
)

// Service joins student and attendance records from the KV store.
type Service struct {
	kv  kvstore.Store
	log *slog.Logger
	now func() time.Time
}

// NewService creates an attendance service using the wall clock.
func NewService(kv kvstore.Store, log *slog.Logger) *Service {
	return &Service{kv: kv, log: log, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MarkInput is one (student, date, status) triple.
type MarkInput struct {
	StudentID string `json:"studentId"`
	Date      string `json:"date"`
	Status    string `json:"status"`
}

// Skipped describes a bulk entry that was not written and why.
type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Roster returns every student (optionally filtered by standard) joined
// with their mark for the date. Unmarked students carry a nil status.
func (s *Service) Roster(ctx context.Context, date string, standard *int) ([]model.RosterEntry, error) {
	marks, err := kvstore.ListJSON[model.AttendanceRecord](ctx, s.kv, kvstore.AttendanceDatePrefix(date))
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", date, err)
	}
	students, err := kvstore.ListJSON[model.Student](ctx, s.kv, kvstore.StudentPrefix)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", date, err)
	}
	student.SortStudents(students)

	byStudent := make(map[string]model.AttendanceRecord, len(marks))
	for _, m := range marks {
		byStudent[m.StudentID] = m
	}

	entries := make([]model.RosterEntry, 0, len(students))
	for _, st := range students {
		if standard != nil && st.Standard != *standard {
			continue
		}
		entry := model.RosterEntry{Student: st}
		if m, ok := byStudent[st.ID]; ok {
			status := m.Status
			markedAt := m.MarkedAt
			entry.Status = &status
			entry.MarkedAt = &markedAt
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Mark upserts one attendance record. Status is accepted case
// insensitively and stored lowercase; re-marking a (student, date) pair
// overwrites the previous record.
func (s *Service) Mark(ctx context.Context, in MarkInput) (model.AttendanceRecord, error) {
	if in.StudentID == "" || in.Date == "" || in.Status == "" {
		return model.AttendanceRecord{}, fmt.Errorf("%w: studentId, date and status are required", ErrInvalidMark)
	}
	status := model.Status(strings.ToLower(in.Status))
	if !status.Valid() {
		return model.AttendanceRecord{}, fmt.Errorf("%w: status must be %q or %q", ErrInvalidMark, model.StatusPresent, model.StatusAbsent)
	}

	rec := model.AttendanceRecord{
		StudentID: in.StudentID,
		Date:      in.Date,
		Status:    status,
		MarkedAt:  s.now().UTC().Format(time.RFC3339),
	}
	if err := s.kv.Set(ctx, kvstore.AttendanceKey(rec.Date, rec.StudentID), rec); err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("mark %s/%s: %w", rec.Date, rec.StudentID, err)
	}
	return rec, nil
}

// BulkMark writes each complete, valid entry and collects the rest as
// skipped. Writes are independent; a storage failure aborts the batch
// with whatever was already written still in place.
func (s *Service) BulkMark(ctx context.Context, entries []MarkInput) ([]model.AttendanceRecord, []Skipped, error) {
	written := make([]model.AttendanceRecord, 0, len(entries))
	var skipped []Skipped
	for i, in := range entries {
		if reason := validateMark(in); reason != "" {
			skipped = append(skipped, Skipped{Index: i, Reason: reason})
			s.log.Warn("bulk mark entry skipped", slog.Int("index", i), slog.String("reason", reason))
			continue
		}
		rec, err := s.Mark(ctx, in)
		if err != nil {
			return written, skipped, err
		}
		written = append(written, rec)
	}
	s.log.Info("bulk mark complete", slog.Int("written", len(written)), slog.Int("skipped", len(skipped)))
	return written, skipped, nil
}

// Report counts each selected student's marks inside the inclusive date
// range. Dates are ISO strings so the range filter is a plain string
// comparison. school "all" (or empty) disables the school filter.
func (s *Service) Report(ctx context.Context, startDate, endDate string, standard *int, school string) ([]model.ReportRow, error) {
	if startDate > endDate {
		return nil, ErrInvalidRange
	}

	marks, err := kvstore.ListJSON[model.AttendanceRecord](ctx, s.kv, kvstore.AttendancePrefix)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	students, err := kvstore.ListJSON[model.Student](ctx, s.kv, kvstore.StudentPrefix)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	student.SortStudents(students)

	type counts struct{ present, absent int }
	inRange := make(map[string]*counts)
	for _, m := range marks {
		if m.Date < startDate || m.Date > endDate {
			continue
		}
		c := inRange[m.StudentID]
		if c == nil {
			c = &counts{}
			inRange[m.StudentID] = c
		}
		switch m.Status {
		case model.StatusPresent:
			c.present++
		case model.StatusAbsent:
			c.absent++
		}
	}

	rows := make([]model.ReportRow, 0, len(students))
	for _, st := range students {
		if standard != nil && st.Standard != *standard {
			continue
		}
		if school != "" && school != "all" && st.School != school {
			continue
		}
		row := model.ReportRow{
			StudentID:    st.ID,
			FirstName:    st.FirstName,
			FatherName:   st.FatherName,
			Surname:      st.Surname,
			Standard:     st.Standard,
			MobileNumber: st.MobileNumber,
		}
		if c := inRange[st.ID]; c != nil {
			row.PresentDays = c.present
			row.AbsentDays = c.absent
			row.TotalDays = c.present + c.absent
		}
		row.AttendancePercentage = Percentage(row.PresentDays, row.TotalDays)
		rows = append(rows, row)
	}
	return rows, nil
}

// Rollup groups report rows by standard and averages the percentages.
// The mean is arithmetic over students, not weighted by day count.
func Rollup(rows []model.ReportRow) []model.ClassRollup {
	sums := make(map[int]*model.ClassRollup)
	for _, row := range rows {
		r := sums[row.Standard]
		if r == nil {
			r = &model.ClassRollup{Standard: row.Standard}
			sums[row.Standard] = r
		}
		r.TotalStudents++
		r.AvgAttendance += row.AttendancePercentage
	}

	rollups := make([]model.ClassRollup, 0, len(sums))
	for _, r := range sums {
		if r.TotalStudents > 0 {
			r.AvgAttendance = round2(r.AvgAttendance / float64(r.TotalStudents))
		}
		rollups = append(rollups, *r)
	}
	sort.Slice(rollups, func(i, j int) bool { return rollups[i].Standard < rollups[j].Standard })
	return rollups
}

// Dashboard computes today's counters from the server clock.
func (s *Service) Dashboard(ctx context.Context) (model.DashboardStats, error) {
	today := s.now().UTC().Format(model.DateLayout)

	students, err := kvstore.ListJSON[model.Student](ctx, s.kv, kvstore.StudentPrefix)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("dashboard: %w", err)
	}
	marks, err := kvstore.ListJSON[model.AttendanceRecord](ctx, s.kv, kvstore.AttendanceDatePrefix(today))
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("dashboard: %w", err)
	}

	stats := model.DashboardStats{
		TotalStudents:   len(students),
		StudentsByClass: make(map[int]int),
	}
	for _, st := range students {
		stats.StudentsByClass[st.Standard]++
	}
	for _, m := range marks {
		switch m.Status {
		case model.StatusPresent:
			stats.PresentToday++
		case model.StatusAbsent:
			stats.AbsentToday++
		}
	}
	return stats, nil
}

// Percentage computes present/total*100 rounded to two decimals,
// defined as 0 when total is 0.
func Percentage(present, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(present) / float64(total) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// validateMark returns a reason string for entries that must be
// skipped, or "" when the entry can be written.
func validateMark(in MarkInput) string {
	switch {
	case in.StudentID == "":
		return "missing studentId"
	case in.Date == "":
		return "missing date"
	case in.Status == "":
		return "missing status"
	case !model.Status(strings.ToLower(in.Status)).Valid():
		return fmt.Sprintf("invalid status %q", in.Status)
	}
	return ""
}
