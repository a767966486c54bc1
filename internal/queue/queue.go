// Package queue carries best-effort attendance mark events from the API
// to the summary worker. Publish failures are logged by callers, never
// surfaced to clients; marks are already persisted before publishing.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"attendance-register/internal/model"
)

// MarkEvent announces one written attendance record.
type MarkEvent struct {
	StudentID string       `json:"studentId"`
	Date      string       `json:"date"`
	Status    model.Status `json:"status"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, evt MarkEvent) error
	Consume(ctx context.Context) (<-chan MarkEvent, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan MarkEvent
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan MarkEvent, size)}
}

// Publish enqueues an event.
func (q *InMemory) Publish(ctx context.Context, evt MarkEvent) error {
	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan MarkEvent, error) {
	out := make(chan MarkEvent)
	go func() {
		defer close(out)
		for {
			select {
			case evt := <-q.ch:
				out <- evt
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "register:marks"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an event as JSON.
func (q *RedisQueue) Publish(ctx context.Context, evt MarkEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Consume streams events using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan MarkEvent, error) {
	out := make(chan MarkEvent)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var evt MarkEvent
				if json.Unmarshal([]byte(res[1]), &evt) == nil {
					out <- evt
				}
			}
		}
	}()
	return out, nil
}
