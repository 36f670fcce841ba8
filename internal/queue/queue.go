// Package queue carries save events from the API to the reconcile worker.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SaveEvent identifies a (subject, date) pair whose log entry was upserted.
type SaveEvent struct {
	SubjectID string
	Date      string
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, evt SaveEvent) error
	Consume(ctx context.Context) (<-chan SaveEvent, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan SaveEvent
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan SaveEvent, size)}
}

// Publish enqueues an event.
func (q *InMemory) Publish(ctx context.Context, evt SaveEvent) error {
	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan SaveEvent, error) {
	out := make(chan SaveEvent)
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

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "classtrack:saves"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an event.
func (q *RedisQueue) Publish(ctx context.Context, evt SaveEvent) error {
	return q.client.LPush(ctx, q.key, serialize(evt)).Err()
}

// Consume streams events using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan SaveEvent, error) {
	out := make(chan SaveEvent)
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
				if evt, ok := deserialize(res[1]); ok {
					out <- evt
				}
			}
		}
	}()
	return out, nil
}

// serialize stores events as subjectId|date. Subject ids never carry the
// separator (they are uuids or numeric strings).
func serialize(evt SaveEvent) string {
	return evt.SubjectID + "|" + evt.Date
}

func deserialize(s string) (SaveEvent, bool) {
	subjectID, date, ok := strings.Cut(s, "|")
	if !ok || subjectID == "" || date == "" {
		return SaveEvent{}, false
	}
	return SaveEvent{SubjectID: subjectID, Date: date}, true
}
