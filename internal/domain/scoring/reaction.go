package scoring

import (
	"math"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
)

// Reaction time scales, in milliseconds.
const (
	fastReactionMs = 250
	slowReactionMs = 1500

	gridFastMs = 400
	gridSlowMs = 3000

	// maxDifficulty normalizes inhibition scores; 2000ms/600ms windows.
	maxDifficulty = 3.33
)

type sensorLockStats struct {
	TotalCorrect     float64 `json:"totalCorrect"`
	TotalAttempts    float64 `json:"totalAttempts"`
	ReactionTimeAvg  float64 `json:"reactionTimeAvg"`
	MismatchCorrect  float64 `json:"mismatchCorrect"`
	MismatchAttempts float64 `json:"mismatchAttempts"`
}

// SensorLock scores the match/mismatch reaction game.
func SensorLock(t Telemetry) (ability.Stats, error) {
	s, err := decode[sensorLockStats](t, "SensorLock")
	if err != nil {
		return ability.Stats{}, err
	}

	focus := ratio(s.TotalCorrect, s.TotalAttempts) * 100
	speed := (slowReactionMs - math.Max(fastReactionMs, s.ReactionTimeAvg)) / (slowReactionMs - fastReactionMs) * 100
	emotion := ratio(s.MismatchCorrect, s.MismatchAttempts) * 100 * math.Min(1, t.Multiplier()/maxDifficulty)

	return ability.Stats{
		Focus:   pct(focus),
		Speed:   pct(speed),
		Emotion: pct(emotion),
	}, nil
}

type floatingBallStats struct {
	TotalEquations      float64 `json:"totalEquations"`
	CorrectEquations    float64 `json:"correctEquations"`
	WrongEquations      float64 `json:"wrongEquations"`
	AverageReactionTime float64 `json:"averageReactionTime"`
	MismatchCorrect     float64 `json:"mismatchCorrect"`
	MismatchAttempts    float64 `json:"mismatchAttempts"`
}

// FloatingBallMath scores the floating ball arithmetic game.
func FloatingBallMath(t Telemetry) (ability.Stats, error) {
	s, err := decode[floatingBallStats](t, "FloatingBallMath")
	if err != nil {
		return ability.Stats{}, err
	}
	p := t.Penalty()

	var focus float64
	if s.TotalEquations > 0 {
		focus = ratio(s.CorrectEquations, s.CorrectEquations+s.WrongEquations) * 100
	}

	speed := 50.0
	if s.AverageReactionTime != 0 {
		speed = (slowReactionMs - s.AverageReactionTime) / (slowReactionMs - fastReactionMs) * 100
	}

	difficulty := math.Min(3, math.Max(1, t.Multiplier()))
	emotion := ratio(s.MismatchCorrect, s.MismatchAttempts) * 100 * difficulty / maxDifficulty

	return ability.Stats{
		Focus:   pct(focus * p),
		Speed:   pct(speed * p),
		Emotion: pct(emotion * p),
	}, nil
}

type gridHunterStats struct {
	MaxCombo        float64 `json:"maxCombo"`
	TotalCorrect    float64 `json:"totalCorrect"`
	TotalAttempts   float64 `json:"totalAttempts"`
	ReactionTimeAvg float64 `json:"reactionTimeAvg"`
	PhaseReached    float64 `json:"phaseReached"`
}

// GridHunter scores the visual search grid game.
func GridHunter(t Telemetry) (ability.Stats, error) {
	s, err := decode[gridHunterStats](t, "GridHunter")
	if err != nil {
		return ability.Stats{}, err
	}

	visual := math.Min(s.PhaseReached, 6)/6*50 + math.Min(s.MaxCombo, 20)*2.5
	focus := ratio(s.TotalCorrect, s.TotalAttempts) * 100

	var speed float64
	if s.ReactionTimeAvg > 0 {
		speed = (gridSlowMs - math.Max(gridFastMs, s.ReactionTimeAvg)) / (gridSlowMs - gridFastMs) * 100
	}

	return ability.Stats{
		Visual: pct(visual),
		Focus:  pct(focus),
		Speed:  pct(speed),
	}, nil
}
