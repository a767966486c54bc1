// Package student implements student record management on top of the
// key-value store: create, partial update, delete with attendance
// cascade, and the distinct-school listing.
package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"attendance-register/internal/kvstore"
	"attendance-register/internal/model"
)

// ErrNotFound is returned when the referenced student id is absent.
var ErrNotFound = errors.New("student not found")

// Service persists students in the KV store.
type Service struct {
	kv  kvstore.Store
	log *slog.Logger
}

// NewService creates a student service.
func NewService(kv kvstore.Store, log *slog.Logger) *Service {
	return &Service{kv: kv, log: log}
}

// CreateInput carries the fields accepted on student creation.
type CreateInput struct {
	FirstName    string
	FatherName   string
	Surname      string
	DateOfBirth  string
	MobileNumber string
	Standard     int
	Address      string
	School       string
	StudentPhoto string
}

// UpdateInput is a partial student patch; nil fields are left unchanged.
type UpdateInput struct {
	FirstName    *string
	FatherName   *string
	Surname      *string
	DateOfBirth  *string
	MobileNumber *string
	Standard     *int
	Address      *string
	School       *string
	StudentPhoto *string
}

// List returns every student, sorted by surname then first name.
func (s *Service) List(ctx context.Context) ([]model.Student, error) {
	students, err := kvstore.ListJSON[model.Student](ctx, s.kv, kvstore.StudentPrefix)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	SortStudents(students)
	return students, nil
}

// Get returns one student by id.
func (s *Service) Get(ctx context.Context, id string) (model.Student, error) {
	var st model.Student
	err := kvstore.GetJSON(ctx, s.kv, kvstore.StudentKey(id), &st)
	if errors.Is(err, kvstore.ErrNotFound) {
		return model.Student{}, ErrNotFound
	}
	if err != nil {
		return model.Student{}, fmt.Errorf("get student %s: %w", id, err)
	}
	return st, nil
}

// Create stores a new student with a generated id and timestamps.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Student, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	st := model.Student{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		FatherName:   in.FatherName,
		Surname:      in.Surname,
		DateOfBirth:  in.DateOfBirth,
		MobileNumber: in.MobileNumber,
		Standard:     in.Standard,
		Address:      in.Address,
		School:       in.School,
		StudentPhoto: in.StudentPhoto,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.kv.Set(ctx, kvstore.StudentKey(st.ID), st); err != nil {
		return model.Student{}, fmt.Errorf("create student: %w", err)
	}
	s.log.Info("student created", slog.String("id", st.ID), slog.Int("standard", st.Standard))
	return st, nil
}

// Update merges the patch over the stored record. The id never changes
// and updatedAt is refreshed. Last writer wins.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.Student, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return model.Student{}, err
	}

	if in.FirstName != nil {
		st.FirstName = *in.FirstName
	}
	if in.FatherName != nil {
		st.FatherName = *in.FatherName
	}
	if in.Surname != nil {
		st.Surname = *in.Surname
	}
	if in.DateOfBirth != nil {
		st.DateOfBirth = *in.DateOfBirth
	}
	if in.MobileNumber != nil {
		st.MobileNumber = *in.MobileNumber
	}
	if in.Standard != nil {
		st.Standard = *in.Standard
	}
	if in.Address != nil {
		st.Address = *in.Address
	}
	if in.School != nil {
		st.School = *in.School
	}
	if in.StudentPhoto != nil {
		st.StudentPhoto = *in.StudentPhoto
	}
	st.ID = id
	st.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := s.kv.Set(ctx, kvstore.StudentKey(id), st); err != nil {
		return model.Student{}, fmt.Errorf("update student %s: %w", id, err)
	}
	s.log.Info("student updated", slog.String("id", id))
	return st, nil
}

// Delete removes the student and every attendance record referencing it.
// The cascade scans the full attendance namespace; records are deleted
// one by one, so a mid-scan failure leaves the remainder for a retry.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, kvstore.StudentKey(id)); err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}

	records, err := kvstore.ListJSON[model.AttendanceRecord](ctx, s.kv, kvstore.AttendancePrefix)
	if err != nil {
		return fmt.Errorf("delete student %s: scan attendance: %w", id, err)
	}
	var removed int
	for _, rec := range records {
		if rec.StudentID != id {
			continue
		}
		if err := s.kv.Delete(ctx, kvstore.AttendanceKey(rec.Date, rec.StudentID)); err != nil {
			return fmt.Errorf("delete student %s: cascade %s: %w", id, rec.Date, err)
		}
		removed++
	}
	s.log.Info("student deleted", slog.String("id", id), slog.Int("attendanceRemoved", removed))
	return nil
}

// Schools returns the distinct non-empty school tags, sorted.
func (s *Service) Schools(ctx context.Context) ([]string, error) {
	students, err := kvstore.ListJSON[model.Student](ctx, s.kv, kvstore.StudentPrefix)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	seen := make(map[string]bool)
	schools := make([]string, 0)
	for _, st := range students {
		if st.School != "" && !seen[st.School] {
			seen[st.School] = true
			schools = append(schools, st.School)
		}
	}
	sort.Strings(schools)
	return schools, nil
}

// SortStudents orders by surname, then first name. Prefix scans have no
// stable order across backends, so listings sort before returning.
func SortStudents(students []model.Student) {
	sort.Slice(students, func(i, j int) bool {
		if students[i].Surname != students[j].Surname {
			return students[i].Surname < students[j].Surname
		}
		return students[i].FirstName < students[j].FirstName
	})
}

// ValidMobile reports whether the number is a 10-digit Indian mobile
// number, which must start with 6-9.
func ValidMobile(number string) bool {
	if len(number) != 10 {
		return false
	}
	if number[0] < '6' || number[0] > '9' {
		return false
	}
	for i := 1; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return false
		}
	}
	return true
}
