package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
	"github.com/DeclineZ/brain-train-sub002/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RELIABLE DELIVERY
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryConfig controls how a side-effect subscriber is retried.
type DeliveryConfig struct {
	// Name identifies the subscriber in logs and dead-letter entries.
	Name string

	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Timeout bounds a single attempt.
	Timeout time.Duration
}

// DefaultDeliveryConfig returns the retry policy used for cache and fan-out
// subscribers.
func DefaultDeliveryConfig(name string) DeliveryConfig {
	return DeliveryConfig{
		Name:         name,
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Timeout:      2 * time.Second,
	}
}

// ContextHandler is an event handler that honours a deadline.
type ContextHandler func(ctx context.Context, event shared.Event) error

// Reliable wraps handler with retries. Events that still fail are parked in
// dlq (when non-nil) and the error is returned to the bus, which only logs it.
func Reliable(cfg DeliveryConfig, handler ContextHandler, dlq *DeadLetterQueue, log *logger.Logger) shared.EventHandler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDeliveryConfig(cfg.Name).Timeout
	}
	log = log.With(logger.Component("delivery"), logger.String("subscriber", cfg.Name))

	return func(event shared.Event) error {
		attempts := 0
		err := retry.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
			return handler(attemptCtx, event)
		},
			retry.WithMaxAttempts(cfg.MaxAttempts),
			retry.WithInitialDelay(cfg.InitialDelay),
			retry.WithMaxDelay(cfg.MaxDelay),
			retry.WithJitter(0),
			retry.WithRetryIf(func(error) bool { return true }),
			retry.WithOnRetry(func(attempt int, err error) {
				log.Debug("retrying event delivery",
					logger.Int("attempt", attempt),
					logger.String("event_type", string(event.EventType())),
					logger.Err(err),
				)
			}),
		)
		if err == nil {
			return nil
		}

		log.Warn("event delivery failed",
			logger.String("event_type", string(event.EventType())),
			logger.UserID(event.AggregateID()),
			logger.Int("attempts", attempts),
			logger.Err(err),
		)
		if dlq != nil {
			dlq.Add(DeadLetterEntry{
				Subscriber: cfg.Name,
				Event:      event,
				Error:      err.Error(),
				Attempts:   attempts,
				FailedAt:   time.Now().UTC(),
			})
		}
		return fmt.Errorf("%s: %w", cfg.Name, err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry is one event a subscriber gave up on.
type DeadLetterEntry struct {
	Subscriber string
	Event      shared.Event
	Error      string
	Attempts   int
	FailedAt   time.Time
}

// DeadLetterQueue keeps the most recent failed deliveries in memory.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a queue holding at most maxSize entries.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry, evicting the oldest at capacity.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of the queued entries, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Pop removes and returns the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

// Redeliver pops every entry and hands it to fn; entries fn rejects go back
// on the queue. It returns how many were delivered.
func (q *DeadLetterQueue) Redeliver(fn func(DeadLetterEntry) error) int {
	n := q.Size()
	delivered := 0
	for i := 0; i < n; i++ {
		entry, ok := q.Pop()
		if !ok {
			break
		}
		if err := fn(entry); err != nil {
			entry.Error = err.Error()
			entry.Attempts++
			q.Add(entry)
			continue
		}
		delivered++
	}
	return delivered
}
