package kvstore

import (
	"context"
	"errors"
	"testing"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"student", StudentKey("abc"), "student:abc"},
		{"attendance", AttendanceKey("2024-01-10", "abc"), "attendance:2024-01-10:abc"},
		{"attendance date prefix", AttendanceDatePrefix("2024-01-10"), "attendance:2024-01-10:"},
		{"user", UserKey("a@b.com"), "user:a@b.com"},
		{"summary", SummaryKey("2024-01-10"), "summary:2024-01-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type rec struct {
		Name string `json:"name"`
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "student:1", rec{Name: "Asha"}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	var got rec
	if err := GetJSON(ctx, s, "student:1", &got); err != nil {
		t.Fatalf("GetJSON() error: %v", err)
	}
	if got.Name != "Asha" {
		t.Errorf("round trip = %+v", got)
	}

	if err := s.Delete(ctx, "student:1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Get(ctx, "student:1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, "student:1"); err != nil {
		t.Errorf("second Delete() error: %v", err)
	}
}

func TestMemoryStorePrefixScan(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type rec struct {
		ID string `json:"id"`
	}
	seed := map[string]rec{
		"student:1":                 {ID: "1"},
		"student:2":                 {ID: "2"},
		"attendance:2024-01-10:1":   {ID: "a1"},
		"attendance:2024-01-10:2":   {ID: "a2"},
		"attendance:2024-01-11:1":   {ID: "a3"},
		"classes":                   {ID: "c"},
	}
	for k, v := range seed {
		if err := s.Set(ctx, k, v); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		prefix string
		want   int
	}{
		{StudentPrefix, 2},
		{AttendancePrefix, 3},
		{AttendanceDatePrefix("2024-01-10"), 2},
		{AttendanceDatePrefix("2024-01-12"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			vals, err := s.GetByPrefix(ctx, tt.prefix)
			if err != nil {
				t.Fatalf("GetByPrefix() error: %v", err)
			}
			if len(vals) != tt.want {
				t.Errorf("GetByPrefix(%q) = %d values, want %d", tt.prefix, len(vals), tt.want)
			}
		})
	}
}

func TestListJSONSkipsBadEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type rec struct {
		ID string `json:"id"`
	}
	if err := s.Set(ctx, "student:1", rec{ID: "1"}); err != nil {
		t.Fatal(err)
	}
	// A value of the wrong shape must not fail the whole scan.
	if err := s.Set(ctx, "student:2", "not-an-object"); err != nil {
		t.Fatal(err)
	}

	out, err := ListJSON[rec](ctx, s, StudentPrefix)
	if err != nil {
		t.Fatalf("ListJSON() error: %v", err)
	}
	if len(out) != 1 || out[0].ID != "1" {
		t.Errorf("ListJSON() = %+v, want single record with id 1", out)
	}
}
