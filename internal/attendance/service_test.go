package attendance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"attendance-register/internal/kvstore"
	"attendance-register/internal/model"
	"attendance-register/internal/student"
)

func testService(t *testing.T) (*Service, *kvstore.MemoryStore, *student.Service) {
	t.Helper()
	kv := kvstore.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(kv, log), kv, student.NewService(kv, log)
}

func seedStudent(t *testing.T, students *student.Service, first, sur string, standard int, school string) model.Student {
	t.Helper()
	st, err := students.Create(context.Background(), student.CreateInput{
		FirstName:    first,
		Surname:      sur,
		DateOfBirth:  "2012-06-01",
		MobileNumber: "9123456789",
		Standard:     standard,
		School:       school,
	})
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return st
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name    string
		present int
		total   int
		want    float64
	}{
		{name: "zero total is defined as zero", present: 0, total: 0, want: 0},
		{name: "three of four", present: 3, total: 4, want: 75.00},
		{name: "all present", present: 5, total: 5, want: 100},
		{name: "one of three rounds to 2 decimals", present: 1, total: 3, want: 33.33},
		{name: "two of three rounds up", present: 2, total: 3, want: 66.67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.present, tt.total); got != tt.want {
				t.Errorf("Percentage(%d, %d) = %v, want %v", tt.present, tt.total, got, tt.want)
			}
		})
	}
}

func TestMarkValidation(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   MarkInput
	}{
		{name: "missing studentId", in: MarkInput{Date: "2024-01-10", Status: "present"}},
		{name: "missing date", in: MarkInput{StudentID: "s1", Status: "present"}},
		{name: "missing status", in: MarkInput{StudentID: "s1", Date: "2024-01-10"}},
		{name: "unknown status", in: MarkInput{StudentID: "s1", Date: "2024-01-10", Status: "late"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Mark(ctx, tt.in); err == nil {
				t.Error("Mark() accepted invalid input")
			}
		})
	}
}

func TestMarkNormalizesStatusAndOverwrites(t *testing.T) {
	svc, kv, _ := testService(t)
	ctx := context.Background()

	rec, err := svc.Mark(ctx, MarkInput{StudentID: "s1", Date: "2024-01-10", Status: "PRESENT"})
	if err != nil {
		t.Fatalf("Mark() error: %v", err)
	}
	if rec.Status != model.StatusPresent {
		t.Errorf("status = %q, want %q", rec.Status, model.StatusPresent)
	}

	// Re-marking the same pair overwrites rather than duplicating.
	if _, err := svc.Mark(ctx, MarkInput{StudentID: "s1", Date: "2024-01-10", Status: "absent"}); err != nil {
		t.Fatalf("re-mark error: %v", err)
	}
	if kv.Len() != 1 {
		t.Errorf("store holds %d keys, want 1", kv.Len())
	}
	var stored model.AttendanceRecord
	if err := kvstore.GetJSON(ctx, kv, kvstore.AttendanceKey("2024-01-10", "s1"), &stored); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if stored.Status != model.StatusAbsent {
		t.Errorf("stored status = %q, want %q", stored.Status, model.StatusAbsent)
	}
}

func TestBulkMarkThenRoster(t *testing.T) {
	svc, _, students := testService(t)
	ctx := context.Background()

	a := seedStudent(t, students, "Asha", "Bhat", 3, "")
	b := seedStudent(t, students, "Bela", "Joshi", 3, "")
	seedStudent(t, students, "Chand", "Mehta", 4, "")

	written, skipped, err := svc.BulkMark(ctx, []MarkInput{
		{StudentID: a.ID, Date: "2024-01-10", Status: "present"},
		{StudentID: b.ID, Date: "2024-01-10", Status: "absent"},
	})
	if err != nil {
		t.Fatalf("BulkMark() error: %v", err)
	}
	if len(written) != 2 || len(skipped) != 0 {
		t.Fatalf("written=%d skipped=%d, want 2/0", len(written), len(skipped))
	}

	standard := 3
	roster, err := svc.Roster(ctx, "2024-01-10", &standard)
	if err != nil {
		t.Fatalf("Roster() error: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("roster has %d entries, want 2", len(roster))
	}
	// Sorted by surname: Bhat before Joshi.
	if roster[0].ID != a.ID || roster[0].Status == nil || *roster[0].Status != model.StatusPresent {
		t.Errorf("entry 0 = %v/%v, want %s present", roster[0].ID, roster[0].Status, a.ID)
	}
	if roster[1].ID != b.ID || roster[1].Status == nil || *roster[1].Status != model.StatusAbsent {
		t.Errorf("entry 1 = %v/%v, want %s absent", roster[1].ID, roster[1].Status, b.ID)
	}
	if roster[0].MarkedAt == nil {
		t.Error("marked entry is missing markedAt")
	}
}

func TestRosterUnmarkedStudentHasNilStatus(t *testing.T) {
	svc, _, students := testService(t)
	ctx := context.Background()
	seedStudent(t, students, "Asha", "Bhat", 3, "")

	roster, err := svc.Roster(ctx, "2024-01-10", nil)
	if err != nil {
		t.Fatalf("Roster() error: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("roster has %d entries, want 1", len(roster))
	}
	if roster[0].Status != nil || roster[0].MarkedAt != nil {
		t.Errorf("unmarked entry has status=%v markedAt=%v, want nil/nil", roster[0].Status, roster[0].MarkedAt)
	}
}

func TestBulkMarkSkipsInvalidEntries(t *testing.T) {
	svc, _, _ := testService(t)

	written, skipped, err := svc.BulkMark(context.Background(), []MarkInput{
		{StudentID: "s1", Date: "2024-01-10", Status: "present"},
		{StudentID: "", Date: "2024-01-10", Status: "present"},
		{StudentID: "s2", Date: "", Status: "absent"},
		{StudentID: "s3", Date: "2024-01-10", Status: "late"},
		{StudentID: "s4", Date: "2024-01-10", Status: "Absent"},
	})
	if err != nil {
		t.Fatalf("BulkMark() error: %v", err)
	}
	if len(written) != 2 {
		t.Errorf("written = %d, want 2", len(written))
	}
	if len(skipped) != 3 {
		t.Fatalf("skipped = %d, want 3", len(skipped))
	}
	wantIdx := []int{1, 2, 3}
	for i, sk := range skipped {
		if sk.Index != wantIdx[i] {
			t.Errorf("skipped[%d].Index = %d, want %d", i, sk.Index, wantIdx[i])
		}
		if sk.Reason == "" {
			t.Errorf("skipped[%d] has empty reason", i)
		}
	}
}

func TestReportRangeScenario(t *testing.T) {
	svc, _, students := testService(t)
	ctx := context.Background()

	// Student A over 5 days: present on 3, absent on 1, unmarked on 1.
	a := seedStudent(t, students, "Asha", "Bhat", 3, "")
	marks := []MarkInput{
		{StudentID: a.ID, Date: "2024-01-01", Status: "present"},
		{StudentID: a.ID, Date: "2024-01-02", Status: "present"},
		{StudentID: a.ID, Date: "2024-01-03", Status: "absent"},
		{StudentID: a.ID, Date: "2024-01-04", Status: "present"},
		// 2024-01-05 unmarked
		// outside the range, must not count
		{StudentID: a.ID, Date: "2024-01-09", Status: "absent"},
	}
	for _, m := range marks {
		if _, err := svc.Mark(ctx, m); err != nil {
			t.Fatalf("Mark(%v): %v", m, err)
		}
	}

	rows, err := svc.Report(ctx, "2024-01-01", "2024-01-05", nil, "")
	if err != nil {
		t.Fatalf("Report() error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("report has %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.TotalDays != 4 || row.PresentDays != 3 || row.AbsentDays != 1 {
		t.Errorf("counts = total %d present %d absent %d, want 4/3/1", row.TotalDays, row.PresentDays, row.AbsentDays)
	}
	if row.AttendancePercentage != 75.00 {
		t.Errorf("attendancePercentage = %v, want 75.00", row.AttendancePercentage)
	}
}

func TestReportFilters(t *testing.T) {
	svc, _, students := testService(t)
	ctx := context.Background()

	seedStudent(t, students, "Asha", "Bhat", 3, "North School")
	seedStudent(t, students, "Bela", "Joshi", 4, "South School")

	tests := []struct {
		name     string
		standard *int
		school   string
		want     int
	}{
		{name: "no filters", want: 2},
		{name: "standard filter", standard: intPtr(3), want: 1},
		{name: "school filter", school: "South School", want: 1},
		{name: "school all disables filter", school: "all", want: 2},
		{name: "both filters mismatch", standard: intPtr(3), school: "South School", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := svc.Report(ctx, "2024-01-01", "2024-01-31", tt.standard, tt.school)
			if err != nil {
				t.Fatalf("Report() error: %v", err)
			}
			if len(rows) != tt.want {
				t.Errorf("rows = %d, want %d", len(rows), tt.want)
			}
		})
	}
}

func TestReportRejectsReversedRange(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.Report(context.Background(), "2024-02-01", "2024-01-01", nil, "")
	if err != ErrInvalidRange {
		t.Errorf("Report() error = %v, want ErrInvalidRange", err)
	}
}

func TestRollup(t *testing.T) {
	rows := []model.ReportRow{
		{StudentID: "a", Standard: 3, AttendancePercentage: 80},
		{StudentID: "b", Standard: 3, AttendancePercentage: 60},
		{StudentID: "c", Standard: 4, AttendancePercentage: 100},
	}
	rollups := Rollup(rows)
	if len(rollups) != 2 {
		t.Fatalf("rollups = %d, want 2", len(rollups))
	}
	if rollups[0].Standard != 3 || rollups[0].TotalStudents != 2 || rollups[0].AvgAttendance != 70 {
		t.Errorf("rollup[0] = %+v, want standard 3, 2 students, avg 70", rollups[0])
	}
	if rollups[1].Standard != 4 || rollups[1].TotalStudents != 1 || rollups[1].AvgAttendance != 100 {
		t.Errorf("rollup[1] = %+v, want standard 4, 1 student, avg 100", rollups[1])
	}
}

func TestDashboard(t *testing.T) {
	svc, _, students := testService(t)
	ctx := context.Background()
	fixed := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	a := seedStudent(t, students, "Asha", "Bhat", 3, "")
	b := seedStudent(t, students, "Bela", "Joshi", 3, "")
	seedStudent(t, students, "Chand", "Mehta", 4, "")

	if _, err := svc.Mark(ctx, MarkInput{StudentID: a.ID, Date: "2024-01-10", Status: "present"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Mark(ctx, MarkInput{StudentID: b.ID, Date: "2024-01-10", Status: "absent"}); err != nil {
		t.Fatal(err)
	}
	// A mark on another date must not affect today's counters.
	if _, err := svc.Mark(ctx, MarkInput{StudentID: a.ID, Date: "2024-01-09", Status: "absent"}); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard() error: %v", err)
	}
	if stats.TotalStudents != 3 || stats.PresentToday != 1 || stats.AbsentToday != 1 {
		t.Errorf("stats = %+v, want 3 students, 1 present, 1 absent", stats)
	}
	if stats.StudentsByClass[3] != 2 || stats.StudentsByClass[4] != 1 {
		t.Errorf("studentsByClass = %v, want {3:2 4:1}", stats.StudentsByClass)
	}
}

func intPtr(v int) *int { return &v }
