package scoring

import (
	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
)

type cardStats struct {
	TotalPairs        float64  `json:"totalPairs"`
	WrongFlips        float64  `json:"wrongFlips"`
	ConsecutiveErrors float64  `json:"consecutiveErrors"`
	RepeatedErrors    float64  `json:"repeatedErrors"`
	UserTimeMs        float64  `json:"userTimeMs"`
	ParTimeMs         float64  `json:"parTimeMs"`
	Attempts          float64  `json:"attempts"`
	StatEmotion       *float64 `json:"stat_emotion"`
}

// Example scores the reference card game.
func Example(t Telemetry) (ability.Stats, error) {
	s, err := decode[cardStats](t, "Example")
	if err != nil {
		return ability.Stats{}, err
	}
	m := t.Multiplier()

	memory := ratio(s.TotalPairs, s.TotalPairs+s.WrongFlips) * 100 * m
	speed := s.ParTimeMs / max(s.UserTimeMs, 1000) * 100 * m
	focus := 100 - s.WrongFlips*5 - s.ConsecutiveErrors*2
	planning := 100 - s.RepeatedErrors*10

	return ability.Stats{
		Memory:   pct(memory),
		Speed:    pct(speed),
		Visual:   pct(speed),
		Focus:    pct(focus),
		Planning: pct(planning),
	}, nil
}

// CardMatch scores the card matching game.
func CardMatch(t Telemetry) (ability.Stats, error) {
	s, err := decode[cardStats](t, "CardMatch")
	if err != nil {
		return ability.Stats{}, err
	}
	m, p := t.Multiplier(), t.Penalty()

	memory := clamp100((100 - s.WrongFlips*5 - s.ConsecutiveErrors*2 - s.RepeatedErrors*10) * m)

	speed := 70.0
	switch {
	case s.ParTimeMs <= 0:
	case s.UserTimeMs <= s.ParTimeMs:
		speed += 30 * (s.ParTimeMs - s.UserTimeMs) / s.ParTimeMs
	default:
		speed -= 50 * (s.UserTimeMs - s.ParTimeMs) / s.ParTimeMs
	}

	attempts := s.Attempts
	if attempts == 0 {
		attempts = 1
	}
	focus := s.TotalPairs / attempts * 100 * m

	return ability.Stats{
		Memory:   pct(memory * p),
		Speed:    pct(speed * m * p),
		Focus:    pct(focus * p),
		Visual:   pct(memory * 0.9 * p),
		Planning: pct(50 * m * p),
		Emotion:  optionalPct(s.StatEmotion),
	}, nil
}

func clamp100(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
