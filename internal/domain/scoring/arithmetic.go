package scoring

import (
	"math"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
)

// expectedShotsPerEquation is the shot budget before planning is penalized.
const expectedShotsPerEquation = 8

type billiardsStats struct {
	TotalEquations    float64 `json:"totalEquations"`
	CorrectEquations  float64 `json:"correctEquations"`
	WrongEquations    float64 `json:"wrongEquations"`
	TotalTimeMs       float64 `json:"totalTimeMs"`
	ParTimeMs         float64 `json:"parTimeMs"`
	ConsecutiveErrors float64 `json:"consecutiveErrors"`
	Attempts          float64 `json:"attempts"`
}

// BilliardsMath scores the billiards equation game.
func BilliardsMath(t Telemetry) (ability.Stats, error) {
	s, err := decode[billiardsStats](t, "BilliardsMath")
	if err != nil {
		return ability.Stats{}, err
	}
	p := t.Penalty()

	accuracy := ratio(s.CorrectEquations, s.TotalEquations) * 100
	focus := accuracy - s.ConsecutiveErrors*5

	speed := s.ParTimeMs / math.Max(s.TotalTimeMs, 1000) * 100

	shotEfficiency := 100.0
	if avg := ratio(s.Attempts, s.TotalEquations); avg > expectedShotsPerEquation {
		shotEfficiency = math.Max(0, 100-(avg-expectedShotsPerEquation)*8)
	}
	planning := shotEfficiency - s.WrongEquations*10

	return ability.Stats{
		Focus:    pct(focus * p),
		Speed:    pct(speed * p),
		Planning: pct(planning * p),
	}, nil
}

type dreamDirectStats struct {
	SpinnerAttempts   float64  `json:"spinnerAttempts"`
	SpinnerCorrect    float64  `json:"spinnerCorrect"`
	FadeAttempts      float64  `json:"fadeAttempts"`
	FadeCorrect       float64  `json:"fadeCorrect"`
	DoubleAttempts    float64  `json:"doubleAttempts"`
	DoubleCorrect     float64  `json:"doubleCorrect"`
	GhostAttempts     float64  `json:"ghostAttempts"`
	GhostCorrect      float64  `json:"ghostCorrect"`
	AnchorAttempts    float64  `json:"anchorAttempts"`
	AnchorCorrect     float64  `json:"anchorCorrect"`
	RuleSwitchErrors  float64  `json:"ruleSwitchErrors"`
	AvgTimingOffsetMs *float64 `json:"avgTimingOffsetMs"`
}

// maxTimingOffsetMs is the offset at which timing precision bottoms out.
const maxTimingOffsetMs = 300

// DreamDirect scores the arrow direction game. Dimensions without attempts stay nil.
func DreamDirect(t Telemetry) (ability.Stats, error) {
	s, err := decode[dreamDirectStats](t, "DreamDirect")
	if err != nil {
		return ability.Stats{}, err
	}
	m, p := t.Multiplier(), t.Penalty()

	var out ability.Stats

	if total := s.SpinnerAttempts + s.FadeAttempts; total > 0 {
		out.Visual = pct((s.SpinnerCorrect + s.FadeCorrect) / total * 100 * m * p)
	}
	if total := s.FadeAttempts + s.DoubleAttempts; total > 0 {
		out.Memory = pct((s.FadeCorrect + s.DoubleCorrect) / total * 100 * m * p)
	}
	if total := s.GhostAttempts + s.AnchorAttempts; total > 0 {
		base := (s.GhostCorrect + s.AnchorCorrect) / total * 100
		out.Focus = pct((base - s.RuleSwitchErrors*5) * m * p)
	}
	if s.AvgTimingOffsetMs != nil {
		out.Speed = pct(math.Max(0, 1-*s.AvgTimingOffsetMs/maxTimingOffsetMs) * 100 * m * p)
	}

	return out, nil
}
