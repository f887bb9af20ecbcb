// Package session holds the immutable audit record written for every
// submitted gameplay attempt.
package session

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// Record is one stored attempt.
type Record struct {
	ID              string
	UserID          string
	GameID          string
	Level           int
	SubmissionKey   string
	Stats           ability.Stats
	Score           float64
	Stars           *int
	DurationSeconds float64
	IsReplay        bool
	LearningRate    float64
	RawData         []byte
	CreatedAt       time.Time
}

// ProfileUpdate computes the new profile from the locked current one.
type ProfileUpdate func(current ability.Stats) ability.Stats

// Store persists attempts.
type Store interface {
	// CountPrior counts stored attempts for the exact (user, game, level).
	CountPrior(ctx context.Context, userID, gameID string, level int) (int, error)
	// RecordAttempt locks the user's profile, applies update when non-nil,
	// saves the profile and inserts rec, all in one transaction. A reused
	// submission key rolls back and returns shared.ErrAlreadyProcessed.
	RecordAttempt(ctx context.Context, rec *Record, update ProfileUpdate) error
	// FindByKey loads the user's attempt stored under submissionKey.
	FindByKey(ctx context.Context, userID, submissionKey string) (*Record, error)
}

// Fingerprint derives a submission key from the user, the game and the
// payload. Object keys are canonicalized so field order does not matter.
func Fingerprint(userID, gameID string, raw []byte) (string, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", shared.WrapError("session", "Fingerprint", shared.ErrValidation, "malformed telemetry", err)
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", shared.WrapError("session", "Fingerprint", shared.ErrValidation, "unencodable telemetry", err)
	}

	h, _ := blake2b.New256(nil)
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(gameID))
	h.Write([]byte{0})
	h.Write(canonical)

	return hex.EncodeToString(h.Sum(nil)), nil
}
