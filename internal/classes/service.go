// Package classes manages the class configuration stored under the
// "classes" key. The collection is small and fully replaced on save.
package classes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"attendance-register/internal/kvstore"
	"attendance-register/internal/model"
)

// Service reads and replaces the class list.
type Service struct {
	kv  kvstore.Store
	log *slog.Logger
}

// NewService creates a classes service.
func NewService(kv kvstore.Store, log *slog.Logger) *Service {
	return &Service{kv: kv, log: log}
}

// List returns the configured classes, falling back to Class 1-12 when
// nothing has been saved yet.
func (s *Service) List(ctx context.Context) ([]model.Class, error) {
	var classes []model.Class
	err := kvstore.GetJSON(ctx, s.kv, kvstore.ClassesKey, &classes)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// Replace overwrites the whole class list.
func (s *Service) Replace(ctx context.Context, classes []model.Class) error {
	if err := s.kv.Set(ctx, kvstore.ClassesKey, classes); err != nil {
		return fmt.Errorf("replace classes: %w", err)
	}
	s.log.Info("classes replaced", slog.Int("count", len(classes)))
	return nil
}

// Defaults returns the standard twelve-class configuration.
func Defaults() []model.Class {
	classes := make([]model.Class, 0, 12)
	for i := 1; i <= 12; i++ {
		classes = append(classes, model.Class{
			ID:       i,
			Name:     fmt.Sprintf("Class %d", i),
			Standard: i,
		})
	}
	return classes
}
