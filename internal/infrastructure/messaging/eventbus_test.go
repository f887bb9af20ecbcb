package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/pkg/metrics"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
}

func TestInMemoryEventBus_DeliversToTypedAndGlobalHandlers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var typed, global int
	require.NoError(t, bus.Subscribe(shared.EventBadgeUnlocked, func(shared.Event) error {
		typed++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		global++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("u1", "first_checkin")))
	require.NoError(t, bus.Publish(shared.NewCheckinRecordedEvent("u1", "2026-10-18", 1, 1)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, global)
}

func TestInMemoryEventBus_HandlerPanicDoesNotEscape(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	assert.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("u1", "x")))
}

func TestInMemoryEventBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var mu sync.Mutex
	seen := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("u1", "b")))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, 5, seen)
	assert.ErrorIs(t, bus.Publish(shared.NewBadgeUnlockedEvent("u1", "b")), ErrEventBusClosed)
}

type recordingInvalidator struct {
	users []string
	err   error
}

func (r *recordingInvalidator) InvalidateUser(_ context.Context, userID string) error {
	r.users = append(r.users, userID)
	return r.err
}

func TestRegisterSubscribers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	cache := &recordingInvalidator{err: errors.New("redis down")}
	m := metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
	dlq := NewDeadLetterQueue(10)
	require.NoError(t, RegisterSubscribers(bus, SubscriberDeps{Metrics: m, Cache: cache, DeadLetters: dlq}))

	require.NoError(t, bus.Publish(shared.NewCheckinRecordedEvent("user-a", "2026-10-18", 2, 5)))
	require.NoError(t, bus.Publish(shared.NewCoinsGrantedEvent("user-b", "game_reward", 28, 128)))
	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("user-c", "first_checkin")))

	// Every failing invalidation is attempted three times, then parked.
	assert.Equal(t, []string{"user-a", "user-a", "user-a", "user-b", "user-b", "user-b"}, cache.users)
	require.Equal(t, 2, dlq.Size())
	entry, ok := dlq.Pop()
	require.True(t, ok)
	assert.Equal(t, "cache_invalidation", entry.Subscriber)
	assert.Equal(t, 3, entry.Attempts)
	assert.Equal(t, "user-a", entry.Event.AggregateID())
}

func fastDelivery(name string) DeliveryConfig {
	cfg := DefaultDeliveryConfig(name)
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestReliable_RecoversFromTransientFailure(t *testing.T) {
	calls := 0
	h := Reliable(fastDelivery("flaky"), func(ctx context.Context, _ shared.Event) error {
		calls++
		if calls < 2 {
			return errors.New("temporary")
		}
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}, nil, nil)

	require.NoError(t, h(shared.NewBadgeUnlockedEvent("u1", "b")))
	assert.Equal(t, 2, calls)
}

func TestReliable_ParksExhaustedEvent(t *testing.T) {
	dlq := NewDeadLetterQueue(5)
	h := Reliable(fastDelivery("broken"), func(context.Context, shared.Event) error {
		return errors.New("still down")
	}, dlq, nil)

	err := h(shared.NewBadgeUnlockedEvent("u1", "b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 1, dlq.Size())
	assert.Equal(t, "still down", dlq.Entries()[0].Error)
}

func TestDeadLetterQueue_EvictsOldestAndRedelivers(t *testing.T) {
	dlq := NewDeadLetterQueue(2)
	for _, user := range []string{"u1", "u2", "u3"} {
		dlq.Add(DeadLetterEntry{Subscriber: "s", Event: shared.NewBadgeUnlockedEvent(user, "b")})
	}
	require.Equal(t, 2, dlq.Size())
	assert.Equal(t, "u2", dlq.Entries()[0].Event.AggregateID())

	delivered := dlq.Redeliver(func(e DeadLetterEntry) error {
		if e.Event.AggregateID() == "u3" {
			return errors.New("nope")
		}
		return nil
	})
	assert.Equal(t, 1, delivered)
	require.Equal(t, 1, dlq.Size())
	left := dlq.Entries()[0]
	assert.Equal(t, "u3", left.Event.AggregateID())
	assert.Equal(t, 1, left.Attempts)
}
