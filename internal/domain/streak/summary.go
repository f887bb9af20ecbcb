// Package streak implements the daily checkin state machine, the static
// badge catalog and the checkin coin bonus.
package streak

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

// Summary is the per-user checkin aggregate.
type Summary struct {
	UserID          string
	CurrentStreak   int
	LongestStreak   int
	TotalCheckins   int
	LastCheckinDate *time.Time
}

// CheckedInOn reports whether the last checkin fell on day.
func (s Summary) CheckedInOn(day time.Time) bool {
	return s.LastCheckinDate != nil && timeutil.DaysBetween(*s.LastCheckinDate, day) == 0
}

// Advance applies a checkin on day. A second checkin on the same day
// returns the summary unchanged.
func (s Summary) Advance(day time.Time) Summary {
	if s.CheckedInOn(day) {
		return s
	}

	if s.LastCheckinDate != nil && timeutil.IsConsecutiveDay(*s.LastCheckinDate, day) {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
	s.TotalCheckins++
	d := timeutil.Date(day.Year(), day.Month(), day.Day())
	s.LastCheckinDate = &d

	return s
}

// EffectiveStreak is the streak as seen on today: it drops to zero once a
// full day has been missed.
func (s Summary) EffectiveStreak(today time.Time) int {
	if s.LastCheckinDate == nil {
		return 0
	}
	if timeutil.DaysBetween(*s.LastCheckinDate, today) > 1 {
		return 0
	}
	return s.CurrentStreak
}

// ═══════════════════════════════════════════════════════════════════════════
// Bonus
// ═══════════════════════════════════════════════════════════════════════════

// Checkin bonus parameters.
const (
	BaseCheckinBonus   = 10
	BonusStep          = 0.1
	MinBonusMultiplier = 1.0
	MaxBonusMultiplier = 3.0
)

// BonusMultiplier is clamp(total*0.1, 1, 3).
func BonusMultiplier(totalCheckins int) float64 {
	return lo.Clamp(float64(totalCheckins)*BonusStep, MinBonusMultiplier, MaxBonusMultiplier)
}

// CheckinBonus is floor(10 * BonusMultiplier(total)).
func CheckinBonus(totalCheckins int) int64 {
	return int64(math.Floor(BaseCheckinBonus * BonusMultiplier(totalCheckins)))
}

// ═══════════════════════════════════════════════════════════════════════════
// Result
// ═══════════════════════════════════════════════════════════════════════════

// CheckinResult is returned by a checkin call.
type CheckinResult struct {
	Success     bool    `json:"success"`
	StreakCount int     `json:"streak_count"`
	NewBadges   []Badge `json:"new_badges"`
	Message     string  `json:"message"`
	CoinsEarned int64   `json:"coins_earned"`
	BaseAmount  int64   `json:"base_amount"`
	Multiplier  float64 `json:"multiplier"`
	NewBalance  *int64  `json:"new_balance,omitempty"`
	NewCheckin  bool    `json:"new_checkin"`
}

// Message renders the user-facing checkin message.
func Message(streak int, newCheckin bool) string {
	if !newCheckin {
		return fmt.Sprintf("วันนี้เช็คอินแล้ว สตรีกปัจจุบัน %d วัน 🔥", streak)
	}
	return fmt.Sprintf("เช็คอินสำเร็จ! สตรีกปัจจุบัน %d วัน 🔥", streak)
}

// ═══════════════════════════════════════════════════════════════════════════
// Ports
// ═══════════════════════════════════════════════════════════════════════════

// Repository stores checkin days and summaries.
type Repository interface {
	// RecordCheckin marks day as checked in and advances the summary in one
	// transaction. created is false when day was already recorded.
	RecordCheckin(ctx context.Context, userID string, day time.Time) (summary Summary, created bool, err error)
	// GetSummary returns a zero summary for users who never checked in.
	GetSummary(ctx context.Context, userID string) (Summary, error)
	IsCheckedIn(ctx context.Context, userID string, day time.Time) (bool, error)
	ListDays(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error)
}

// BadgeRepository stores one-time badge unlocks.
type BadgeRepository interface {
	// Unlock inserts the given badges and returns only the ids that were not
	// owned before. Backed by a uniqueness constraint on (user, badge).
	Unlock(ctx context.Context, userID string, badgeIDs []string) ([]string, error)
	ListUnlocked(ctx context.Context, userID string) (map[string]time.Time, error)
}
