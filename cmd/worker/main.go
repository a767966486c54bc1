package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance-register/internal/config"
	"attendance-register/internal/kvstore"
	"attendance-register/internal/model"
	"attendance-register/internal/queue"
)

// DailySummary is the derived per-date counter the worker maintains
// under summary:<date>. Informational only; live endpoints still scan
// the attendance records themselves.
type DailySummary struct {
	Date      string `json:"date"`
	Present   int    `json:"present"`
	Absent    int    `json:"absent"`
	UpdatedAt string `json:"updatedAt"`
}

// Worker consumes mark events and refreshes daily summary keys.
func main() {
	cfg := config.Load()
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	kv := kvstore.NewRedis(cfg.RedisAddr)
	defer kv.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(kv.Client(), "register:marks")
	}

	events, err := q.Consume(ctx)
	if err != nil {
		log.Error("queue consume init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("worker started, waiting for mark events")
	for evt := range events {
		if err := refreshSummary(ctx, kv, evt.Date); err != nil {
			log.Warn("summary refresh failed",
				slog.String("date", evt.Date),
				slog.String("error", err.Error()))
			continue
		}
		log.Debug("summary refreshed",
			slog.String("date", evt.Date),
			slog.String("student", evt.StudentID))
	}
	log.Info("worker stopped")
}

// refreshSummary recounts the date's marks and overwrites its summary
// key. Recounting (rather than incrementing) keeps the summary right
// when a mark overwrites an earlier status for the same student.
func refreshSummary(ctx context.Context, kv kvstore.Store, date string) error {
	marks, err := kvstore.ListJSON[model.AttendanceRecord](ctx, kv, kvstore.AttendanceDatePrefix(date))
	if err != nil {
		return err
	}
	summary := DailySummary{
		Date:      date,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, m := range marks {
		switch m.Status {
		case model.StatusPresent:
			summary.Present++
		case model.StatusAbsent:
			summary.Absent++
		}
	}
	if err := kv.Set(ctx, kvstore.SummaryKey(date), summary); err != nil {
		return errors.Join(errors.New("write summary"), err)
	}
	return nil
}
