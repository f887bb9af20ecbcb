package messaging

import (
	"context"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
	"github.com/DeclineZ/brain-train-sub002/pkg/metrics"
)

// CacheInvalidator drops cached read models for a user.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// SubscriberDeps are the collaborators progression subscribers need.
// Any of them may be nil.
type SubscriberDeps struct {
	Metrics   *metrics.Manager
	Cache     CacheInvalidator
	Forwarder *RedisForwarder
	Logger    *logger.Logger

	// DeadLetters collects cache and fan-out deliveries that kept failing.
	DeadLetters *DeadLetterQueue
}

// RegisterSubscribers wires the standard progression subscribers onto bus.
func RegisterSubscribers(bus shared.EventSubscriber, deps SubscriberDeps) error {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("subscribers"))

	if err := bus.SubscribeAll(func(e shared.Event) error {
		log.Debug("progression event",
			logger.String("event_type", string(e.EventType())),
			logger.UserID(e.AggregateID()),
		)
		return nil
	}); err != nil {
		return err
	}

	if deps.Metrics != nil {
		m := deps.Metrics
		subs := map[shared.EventType]shared.EventHandler{
			shared.EventCoinsGranted: func(e shared.Event) error {
				if ev, ok := e.(shared.CoinsGrantedEvent); ok {
					m.RecordCoins(ev.Action, ev.Amount)
				}
				return nil
			},
			shared.EventBadgeUnlocked: func(e shared.Event) error {
				if ev, ok := e.(shared.BadgeUnlockedEvent); ok {
					m.RecordBadge(ev.BadgeID)
				}
				return nil
			},
			shared.EventMissionCompleted: func(shared.Event) error {
				m.RecordMissionCompleted()
				return nil
			},
		}
		for eventType, handler := range subs {
			if err := bus.Subscribe(eventType, handler); err != nil {
				return err
			}
		}
	}

	if deps.Cache != nil {
		invalidate := Reliable(DefaultDeliveryConfig("cache_invalidation"),
			func(ctx context.Context, e shared.Event) error {
				return deps.Cache.InvalidateUser(ctx, e.AggregateID())
			}, deps.DeadLetters, log)
		for _, eventType := range []shared.EventType{
			shared.EventCheckinRecorded,
			shared.EventSessionRecorded,
			shared.EventCoinsGranted,
		} {
			if err := bus.Subscribe(eventType, invalidate); err != nil {
				return err
			}
		}
	}

	if deps.Forwarder != nil {
		forward := Reliable(DefaultDeliveryConfig("redis_fanout"), deps.Forwarder.HandleContext, deps.DeadLetters, log)
		if err := bus.SubscribeAll(forward); err != nil {
			return err
		}
	}

	return nil
}
