// Package mission models the daily assignment of games a user should play.
package mission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/game"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// DailyMissionCount is the fixed number of slots per user per day.
const DailyMissionCount = 3

// Slot is one daily assignment.
type Slot struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	Date        time.Time  `json:"date"`
	SlotIndex   int        `json:"slot_index"`
	GameID      string     `json:"game_id"`
	Label       string     `json:"label"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SessionKey  string     `json:"-"`
}

// Result is what a submission reports about missions.
type Result struct {
	Completed bool   `json:"completed"`
	Label     string `json:"label"`
	SlotIndex int    `json:"slotIndex"`
}

// ResultOf converts a completed slot into a Result, nil when none.
func ResultOf(s *Slot) *Result {
	if s == nil {
		return nil
	}
	return &Result{Completed: true, Label: s.Label, SlotIndex: s.SlotIndex}
}

// Complete reports whether every slot in the list is complete.
func Complete(slots []Slot) bool {
	return len(slots) >= DailyMissionCount && lo.EveryBy(slots, func(s Slot) bool { return s.Completed })
}

// Generate picks DailyMissionCount distinct games from pool for day.
func Generate(userID string, day time.Time, pool []game.Game) ([]Slot, error) {
	if len(pool) < DailyMissionCount {
		return nil, shared.NewDomainError("mission", "Generate", shared.ErrValidation, "not enough games for daily missions")
	}

	picked := lo.Shuffle(append([]game.Game(nil), pool...))[:DailyMissionCount]

	return lo.Map(picked, func(g game.Game, i int) Slot {
		return Slot{
			ID:        uuid.NewString(),
			UserID:    userID,
			Date:      day,
			SlotIndex: i,
			GameID:    g.ID,
			Label:     g.Title,
		}
	}), nil
}

// Repository stores daily mission slots.
type Repository interface {
	ListForDay(ctx context.Context, userID string, day time.Time) ([]Slot, error)
	// InsertSlots ignores slots whose (user, date, slot index) already exist.
	InsertSlots(ctx context.Context, slots []Slot) error
	// Complete marks the first incomplete slot for gameID on day in a single
	// conditional update tagged with sessionKey. A slot already tagged with
	// sessionKey is returned again. Returns nil when nothing matched.
	Complete(ctx context.Context, userID, gameID string, day time.Time, sessionKey string, at time.Time) (*Slot, error)
	CountCompleted(ctx context.Context, userID string, day time.Time) (int, error)
}
