// Package kvstore provides the namespaced key-value store the whole
// application persists into. Keys are composed strings such as
// student:<id> and attendance:<date>:<studentId>; values are JSON.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the capability set every backend implements. GetByPrefix must
// return all matching entries in a single call; callers do not paginate.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Healthy(ctx context.Context) bool
	Close() error
}

// Key namespaces.
const (
	ClassesKey       = "classes"
	StudentPrefix    = "student:"
	AttendancePrefix = "attendance:"
	UserPrefix       = "user:"
	SummaryPrefix    = "summary:"
)

// StudentKey returns the key for a student record.
func StudentKey(id string) string { return StudentPrefix + id }

// AttendanceKey returns the key for one (date, student) mark.
func AttendanceKey(date, studentID string) string {
	return AttendancePrefix + date + ":" + studentID
}

// AttendanceDatePrefix matches every mark for a single date.
func AttendanceDatePrefix(date string) string {
	return AttendancePrefix + date + ":"
}

// UserKey returns the key for an admin account.
func UserKey(email string) string { return UserPrefix + email }

// SummaryKey returns the key for a worker-maintained daily summary.
func SummaryKey(date string) string { return SummaryPrefix + date }

// GetJSON fetches a key and unmarshals it into out.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// ListJSON fetches all values under prefix and unmarshals each into T.
// Values that fail to decode are skipped; a store shared by multiple
// writers should not bring every scan down over one bad entry.
func ListJSON[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	raws, err := s.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
