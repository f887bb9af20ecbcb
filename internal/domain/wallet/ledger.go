// Package wallet defines the coin ledger port. Every balance change goes
// through Ledger.ApplyDelta with an idempotency key.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// ErrInsufficientFunds is returned when a delta would make the balance negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ActionKey classifies a ledger entry.
type ActionKey string

const (
	ActionGameReward       ActionKey = "game_reward"
	ActionCheckinBonus     ActionKey = "checkin_bonus"
	ActionAllMissionsBonus ActionKey = "all_missions_bonus"
	ActionAddCoins         ActionKey = "add_coins"
)

// DeltaRequest is one balance mutation.
type DeltaRequest struct {
	UserID         string    `validate:"required,uuid"`
	Delta          int64     `validate:"ne=0"`
	ActionKey      ActionKey `validate:"required"`
	RefID          string
	Metadata       map[string]any
	IdempotencyKey string `validate:"required,max=200"`
	AllowNegative  bool
}

// DeltaResult describes the ledger state after ApplyDelta.
type DeltaResult struct {
	TransactionID string
	NewBalance    int64
	// Applied is false when the idempotency key had already been used.
	Applied bool
}

// Transaction is one entry of the append-only log.
type Transaction struct {
	ID             string         `json:"id"`
	Delta          int64          `json:"delta"`
	BalanceAfter   int64          `json:"balance_after"`
	ActionKey      ActionKey      `json:"action_key"`
	RefID          string         `json:"ref_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IdempotencyKey string         `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Ledger is the atomic balance mutation primitive. Applying the same
// IdempotencyKey twice has the effect of applying it once; the second call
// returns the recorded balance and an error matching shared.ErrAlreadyProcessed.
type Ledger interface {
	ApplyDelta(ctx context.Context, req DeltaRequest) (*DeltaResult, error)
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]Transaction, error)
}

// Apply calls ledger.ApplyDelta and folds AlreadyProcessed into success.
func Apply(ctx context.Context, ledger Ledger, req DeltaRequest) (*DeltaResult, error) {
	res, err := ledger.ApplyDelta(ctx, req)
	if err != nil && shared.IsAlreadyProcessed(err) {
		if res == nil {
			res = &DeltaResult{}
		}
		res.Applied = false
		return res, nil
	}
	return res, err
}

// ═══════════════════════════════════════════════════════════════════════════
// Idempotency keys
// ═══════════════════════════════════════════════════════════════════════════

// GameRewardKey keys the reward for one submission.
func GameRewardKey(submissionKey string) string {
	return fmt.Sprintf("%s:%s", ActionGameReward, submissionKey)
}

// CheckinBonusKey keys the once-a-day checkin bonus.
func CheckinBonusKey(userID, day string) string {
	return fmt.Sprintf("%s:%s:%s", ActionCheckinBonus, userID, day)
}

// AllMissionsKey keys the once-a-day all missions bonus.
func AllMissionsKey(userID, day string) string {
	return fmt.Sprintf("all_missions:%s:%s", userID, day)
}
