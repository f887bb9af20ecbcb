// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Progression event types. Each is published after the fact it describes
// has been committed.
const (
	EventSessionRecorded      EventType = "progression.session_recorded"
	EventStarImproved         EventType = "progression.star_improved"
	EventCoinsGranted         EventType = "wallet.coins_granted"
	EventMissionCompleted     EventType = "mission.completed"
	EventAllMissionsCompleted EventType = "mission.all_completed"
	EventCheckinRecorded      EventType = "streak.checkin_recorded"
	EventBadgeUnlocked        EventType = "streak.badge_unlocked"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionRecordedEvent is emitted once the critical part of a submission commits.
type SessionRecordedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	GameID    string `json:"game_id"`
	Level     int    `json:"level"`
	IsReplay  bool   `json:"is_replay"`
}

// Payload implements Event interface.
func (e SessionRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"game_id":    e.GameID,
		"level":      e.Level,
		"is_replay":  e.IsReplay,
	}
}

// NewSessionRecordedEvent creates a new SessionRecordedEvent.
func NewSessionRecordedEvent(userID, sessionID, gameID string, level int, isReplay bool) SessionRecordedEvent {
	return SessionRecordedEvent{
		BaseEvent: NewBaseEvent(EventSessionRecorded, userID),
		SessionID: sessionID,
		GameID:    gameID,
		Level:     level,
		IsReplay:  isReplay,
	}
}

// StarImprovedEvent is emitted when a level's best star rating goes up.
type StarImprovedEvent struct {
	BaseEvent
	GameID   string `json:"game_id"`
	Level    int    `json:"level"`
	Previous int    `json:"previous"`
	Star     int    `json:"star"`
}

// Payload implements Event interface.
func (e StarImprovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"game_id":  e.GameID,
		"level":    e.Level,
		"previous": e.Previous,
		"star":     e.Star,
	}
}

// NewStarImprovedEvent creates a new StarImprovedEvent.
func NewStarImprovedEvent(userID, gameID string, level, previous, star int) StarImprovedEvent {
	return StarImprovedEvent{
		BaseEvent: NewBaseEvent(EventStarImproved, userID),
		GameID:    gameID,
		Level:     level,
		Previous:  previous,
		Star:      star,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Wallet Events
// ═══════════════════════════════════════════════════════════════════════════

// CoinsGrantedEvent is emitted when a ledger credit is applied.
type CoinsGrantedEvent struct {
	BaseEvent
	Action     string `json:"action"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}

// Payload implements Event interface.
func (e CoinsGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"action":      e.Action,
		"amount":      e.Amount,
		"new_balance": e.NewBalance,
	}
}

// NewCoinsGrantedEvent creates a new CoinsGrantedEvent.
func NewCoinsGrantedEvent(userID, action string, amount, newBalance int64) CoinsGrantedEvent {
	return CoinsGrantedEvent{
		BaseEvent:  NewBaseEvent(EventCoinsGranted, userID),
		Action:     action,
		Amount:     amount,
		NewBalance: newBalance,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mission Events
// ═══════════════════════════════════════════════════════════════════════════

// MissionCompletedEvent is emitted when a daily mission slot is completed.
type MissionCompletedEvent struct {
	BaseEvent
	GameID    string `json:"game_id"`
	SlotIndex int    `json:"slot_index"`
	Completed int    `json:"completed_today"`
}

// Payload implements Event interface.
func (e MissionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"game_id":         e.GameID,
		"slot_index":      e.SlotIndex,
		"completed_today": e.Completed,
	}
}

// NewMissionCompletedEvent creates a new MissionCompletedEvent.
func NewMissionCompletedEvent(userID, gameID string, slotIndex, completed int) MissionCompletedEvent {
	return MissionCompletedEvent{
		BaseEvent: NewBaseEvent(EventMissionCompleted, userID),
		GameID:    gameID,
		SlotIndex: slotIndex,
		Completed: completed,
	}
}

// AllMissionsCompletedEvent is emitted when the all-missions bonus is granted.
type AllMissionsCompletedEvent struct {
	BaseEvent
	Date  string `json:"date"`
	Bonus int64  `json:"bonus"`
}

// Payload implements Event interface.
func (e AllMissionsCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date":  e.Date,
		"bonus": e.Bonus,
	}
}

// NewAllMissionsCompletedEvent creates a new AllMissionsCompletedEvent.
func NewAllMissionsCompletedEvent(userID, date string, bonus int64) AllMissionsCompletedEvent {
	return AllMissionsCompletedEvent{
		BaseEvent: NewBaseEvent(EventAllMissionsCompleted, userID),
		Date:      date,
		Bonus:     bonus,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// CheckinRecordedEvent is emitted on the first checkin of a calendar day.
type CheckinRecordedEvent struct {
	BaseEvent
	Date          string `json:"date"`
	CurrentStreak int    `json:"current_streak"`
	TotalCheckins int    `json:"total_checkins"`
}

// Payload implements Event interface.
func (e CheckinRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date":           e.Date,
		"current_streak": e.CurrentStreak,
		"total_checkins": e.TotalCheckins,
	}
}

// NewCheckinRecordedEvent creates a new CheckinRecordedEvent.
func NewCheckinRecordedEvent(userID, date string, current, total int) CheckinRecordedEvent {
	return CheckinRecordedEvent{
		BaseEvent:     NewBaseEvent(EventCheckinRecorded, userID),
		Date:          date,
		CurrentStreak: current,
		TotalCheckins: total,
	}
}

// BadgeUnlockedEvent is emitted once per (user, badge).
type BadgeUnlockedEvent struct {
	BaseEvent
	BadgeID string `json:"badge_id"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"badge_id": e.BadgeID,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(userID, badgeID string) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEvent(EventBadgeUnlocked, userID),
		BadgeID:   badgeID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
