package classes

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"attendance-register/internal/kvstore"
	"attendance-register/internal/model"
)

func testService() *Service {
	return NewService(kvstore.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListReturnsDefaultsWhenUnset(t *testing.T) {
	svc := testService()
	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 12 {
		t.Fatalf("defaults = %d classes, want 12", len(list))
	}
	if list[0].Name != "Class 1" || list[0].Standard != 1 {
		t.Errorf("first default = %+v", list[0])
	}
	if list[11].Name != "Class 12" || list[11].Standard != 12 {
		t.Errorf("last default = %+v", list[11])
	}
}

func TestReplaceOverwritesWholeList(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	custom := []model.Class{
		{ID: 1, Name: "Junior", Standard: 1},
		{ID: 2, Name: "Senior", Standard: 2},
	}
	if err := svc.Replace(ctx, custom); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Junior" || list[1].Name != "Senior" {
		t.Errorf("List() = %+v, want the replaced pair", list)
	}

	// Replacing with an empty list persists the empty list; defaults only
	// apply while nothing was ever saved.
	if err := svc.Replace(ctx, []model.Class{}); err != nil {
		t.Fatalf("Replace(empty) error: %v", err)
	}
	list, err = svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() after empty replace = %d classes, want 0", len(list))
	}
}
