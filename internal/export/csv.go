// Package export serializes report data to CSV with standard quoting.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"attendance-register/internal/model"
)

// StudentReportCSV writes report rows with the columns the register's
// spreadsheet exports have always used.
func StudentReportCSV(w io.Writer, rows []model.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Full Name", "Class", "Total Days", "Present Days", "Absent Days", "Attendance %"}); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, row := range rows {
		st := model.Student{FirstName: row.FirstName, FatherName: row.FatherName, Surname: row.Surname}
		record := []string{
			st.FullName(),
			strconv.Itoa(row.Standard),
			strconv.Itoa(row.TotalDays),
			strconv.Itoa(row.PresentDays),
			strconv.Itoa(row.AbsentDays),
			formatPercent(row.AttendancePercentage),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ClassReportCSV writes the per-class rollup.
func ClassReportCSV(w io.Writer, rollups []model.ClassRollup) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Class", "Total Students", "Average Attendance %"}); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, r := range rollups {
		record := []string{
			strconv.Itoa(r.Standard),
			strconv.Itoa(r.TotalStudents),
			formatPercent(r.AvgAttendance),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
