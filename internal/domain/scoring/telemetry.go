// Package scoring turns raw per-session telemetry into six-dimension
// ability stats. Every game family registers one pure Calculator.
package scoring

import (
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// TimeoutPenalty scales stats of an attempt that continued after the timer ran out.
const TimeoutPenalty = 0.7

var validate = validator.New()

// Envelope carries the fields shared by every game's payload.
type Envelope struct {
	LevelPlayed           *int     `json:"levelPlayed" validate:"omitempty,gte=0"`
	CurrentPlayed         *int     `json:"current_played" validate:"omitempty,gte=0"`
	LevelNumber           *int     `json:"level" validate:"omitempty,gte=0"`
	DifficultyMultiplier  *float64 `json:"difficultyMultiplier"`
	UserTimeMs            *float64 `json:"userTimeMs" validate:"omitempty,gte=0"`
	Stars                 *float64 `json:"stars"`
	Score                 *float64 `json:"score"`
	ContinuedAfterTimeout bool     `json:"continuedAfterTimeout"`
}

// Level resolves the level indicator: levelPlayed, then current_played,
// then level, defaulting to 1.
func (e Envelope) Level() int {
	switch {
	case e.LevelPlayed != nil:
		return *e.LevelPlayed
	case e.CurrentPlayed != nil:
		return *e.CurrentPlayed
	case e.LevelNumber != nil:
		return *e.LevelNumber
	}
	return 1
}

// Multiplier returns the difficulty multiplier, 1.0 when missing or not positive.
func (e Envelope) Multiplier() float64 {
	if e.DifficultyMultiplier == nil || *e.DifficultyMultiplier <= 0 {
		return 1
	}
	return *e.DifficultyMultiplier
}

// Penalty returns TimeoutPenalty for attempts continued after timeout, else 1.
func (e Envelope) Penalty() float64 {
	if e.ContinuedAfterTimeout {
		return TimeoutPenalty
	}
	return 1
}

// StarsEarned returns the reported star rating, nil when absent.
func (e Envelope) StarsEarned() *int {
	if e.Stars == nil {
		return nil
	}
	v := int(math.Floor(*e.Stars))
	return &v
}

// ScoreValue returns the reported score or 0.
func (e Envelope) ScoreValue() float64 {
	if e.Score == nil {
		return 0
	}
	return *e.Score
}

// DurationSeconds converts userTimeMs to seconds.
func (e Envelope) DurationSeconds() float64 {
	if e.UserTimeMs == nil {
		return 0
	}
	return *e.UserTimeMs / 1000
}

// Telemetry is one decoded RawSessionTelemetry payload.
type Telemetry struct {
	Envelope
	raw []byte
}

// ParseTelemetry decodes and validates the common envelope of a payload.
func ParseTelemetry(raw []byte) (Telemetry, error) {
	if len(raw) == 0 {
		return Telemetry{}, shared.ValidationError("scoring", "ParseTelemetry", "empty telemetry")
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Telemetry{}, shared.WrapError("scoring", "ParseTelemetry", shared.ErrValidation, "malformed telemetry", err)
	}
	if err := validate.Struct(env); err != nil {
		return Telemetry{}, shared.WrapError("scoring", "ParseTelemetry", shared.ErrValidation, "invalid telemetry envelope", err)
	}

	return Telemetry{Envelope: env, raw: raw}, nil
}

// Raw returns the original payload bytes.
func (t Telemetry) Raw() []byte {
	return t.raw
}

// Decode unmarshals the full payload into v.
func (t Telemetry) Decode(v any) error {
	return json.Unmarshal(t.raw, v)
}

func decode[T any](t Telemetry, op string) (T, error) {
	var v T
	if err := t.Decode(&v); err != nil {
		return v, shared.WrapError("scoring", op, shared.ErrValidation, "malformed telemetry", err)
	}
	return v, nil
}
