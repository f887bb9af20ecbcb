package scoring

import (
	"math"

	"github.com/samber/lo"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
)

// ═══════════════════════════════════════════════════════════════════════════
// Pink Cup
// ═══════════════════════════════════════════════════════════════════════════

// Pink cup speed benchmarks.
const (
	firstMoveTargetMs = 3000
	moveTargetMs      = 2000
	completeTargetMs  = 60000
)

type cell struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func manhattan(a, b cell) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y)
}

type pinkCupMove struct {
	Timestamp        float64 `json:"timestamp"`
	To               cell    `json:"to"`
	DistanceToTarget float64 `json:"distanceToTarget"`
	Backtracked      bool    `json:"backtracked"`
}

type pinkCupProbe struct {
	ProbeTime  float64 `json:"probeTime"`
	AnswerTime float64 `json:"answerTime"`
	Correct    bool    `json:"correct"`
}

type pinkCupStats struct {
	Telemetry *struct {
		TargetCell cell           `json:"targetCell"`
		PinkStart  cell           `json:"pinkStart"`
		TStart     float64        `json:"t_start"`
		TEnd       float64        `json:"t_end"`
		Moves      []pinkCupMove  `json:"moves"`
		Probes     []pinkCupProbe `json:"probes"`
	} `json:"telemetry"`
	Success bool `json:"success"`
}

// PinkCup scores the hidden cup tracking game. Spatial awareness is reported
// as the visual dimension. A missing telemetry block or multiplier yields zeros.
func PinkCup(t Telemetry) (ability.Stats, error) {
	s, err := decode[pinkCupStats](t, "PinkCup")
	if err != nil {
		return ability.Stats{}, err
	}

	zero := ability.Stats{
		Memory:   ability.Int(0),
		Speed:    ability.Int(0),
		Visual:   ability.Int(0),
		Planning: ability.Int(0),
	}
	if s.Telemetry == nil || t.DifficultyMultiplier == nil || *t.DifficultyMultiplier <= 0 {
		return zero, nil
	}
	m := *t.DifficultyMultiplier
	tel := s.Telemetry
	moves := float64(len(tel.Moves))
	optimal := manhattan(tel.PinkStart, tel.TargetCell)

	var spatial, speed, planning float64
	if len(tel.Moves) > 0 {
		good := 0.0
		pos := tel.PinkStart
		for _, mv := range tel.Moves {
			if mv.DistanceToTarget < manhattan(pos, tel.TargetCell) {
				good++
			}
			pos = mv.To
		}
		spatial = 100 - 25*(moves-good) - 10*math.Max(0, moves-optimal)

		first := tel.Moves[0].Timestamp - tel.TStart
		var gaps []float64
		for i := 1; i < len(tel.Moves); i++ {
			if gap := tel.Moves[i].Timestamp - tel.Moves[i-1].Timestamp; gap > 0 {
				gaps = append(gaps, gap)
			}
		}
		speed = 100 -
			math.Max(0, (first-firstMoveTargetMs)/30) -
			math.Max(0, (mean(gaps)-moveTargetMs)/30) -
			math.Max(0, (tel.TEnd-tel.TStart-completeTargetMs)/600)

		backtracks := float64(lo.CountBy(tel.Moves, func(mv pinkCupMove) bool { return mv.Backtracked }))
		planning = 100 - 10*math.Max(0, moves-optimal) - 5*backtracks
	}

	var memory float64
	if len(tel.Probes) > 0 && s.Success {
		wrong := float64(lo.CountBy(tel.Probes, func(p pinkCupProbe) bool { return !p.Correct }))
		var rts []float64
		for _, p := range tel.Probes {
			if rt := p.AnswerTime - p.ProbeTime; rt > 0 {
				rts = append(rts, rt)
			}
		}
		memory = 100 - 50*wrong - 0.02*mean(rts)
	}

	return ability.Stats{
		Memory:   pct(memory * m),
		Speed:    pct(speed * m),
		Visual:   pct(spatial * m),
		Planning: pct(planning * m),
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Tube Sort, Miner
// ═══════════════════════════════════════════════════════════════════════════

type tubeSortStats struct {
	OptimalMoves        float64 `json:"optimalMoves"`
	PlayerMoves         float64 `json:"playerMoves"`
	CorrectPours        float64 `json:"correctPours"`
	IncorrectPours      float64 `json:"incorrectPours"`
	IllegalPourAttempts float64 `json:"illegalPourAttempts"`
	RedundantMoves      float64 `json:"redundantMoves"`
	TotalActions        float64 `json:"totalActions"`
	CompletionTimeMs    float64 `json:"completionTimeMs"`
	TargetTimeMs        float64 `json:"targetTimeMs"`
}

// TubeSort scores the liquid sorting puzzle.
func TubeSort(t Telemetry) (ability.Stats, error) {
	s, err := decode[tubeSortStats](t, "TubeSort")
	if err != nil {
		return ability.Stats{}, err
	}

	planning := s.OptimalMoves / math.Max(s.PlayerMoves, 1) * 100
	visual := s.CorrectPours / math.Max(s.CorrectPours+s.IncorrectPours, 1) * 100
	focus := (1 - (s.IllegalPourAttempts+s.RedundantMoves)/math.Max(s.TotalActions, 1)) * 100
	speed := s.TargetTimeMs / math.Max(s.CompletionTimeMs, 1000) * 100

	return ability.Stats{
		Planning: pct(planning),
		Visual:   pct(visual),
		Focus:    pct(focus),
		Speed:    pct(speed),
	}, nil
}

type minerStats struct {
	Attempts             float64 `json:"attempts"`
	ValuableGrabs        float64 `json:"valuable_grabs"`
	Mistakes             float64 `json:"mistakes"`
	TotalValue           float64 `json:"total_value"`
	GoalAmount           float64 `json:"goal_amount"`
	AvgDecisionTimeMs    float64 `json:"avg_decision_time_ms"`
	TargetDecisionTimeMs float64 `json:"target_decision_time_ms"`
}

// Miner scores the claw grabbing game.
func Miner(t Telemetry) (ability.Stats, error) {
	s, err := decode[minerStats](t, "Miner")
	if err != nil {
		return ability.Stats{}, err
	}

	attempts := math.Max(s.Attempts, 1)
	valueRatio := s.TotalValue / math.Max(s.GoalAmount, 1)
	efficiency := s.ValuableGrabs / attempts

	return ability.Stats{
		Planning: pct(valueRatio * efficiency * 100),
		Visual:   pct(efficiency * 100),
		Focus:    pct((1 - s.Mistakes/attempts) * 100),
		Speed:    pct(s.TargetDecisionTimeMs / math.Max(s.AvgDecisionTimeMs, 1) * 100),
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Taxi Driver
// ═══════════════════════════════════════════════════════════════════════════

// Taxi driver scales.
const (
	taxiFastMs        = 500
	taxiSlowMs        = 4000
	taxiMaxDistancePx = 100
)

type taxiDriverStats struct {
	NorthFacingAttempts       float64   `json:"northFacingAttempts"`
	NorthFacingCorrect        float64   `json:"northFacingCorrect"`
	SouthFacingAttempts       float64   `json:"southFacingAttempts"`
	SouthFacingCorrect        float64   `json:"southFacingCorrect"`
	ForwardAttempts           float64   `json:"forwardAttempts"`
	ForwardCorrect            float64   `json:"forwardCorrect"`
	TotalTurns                float64   `json:"totalTurns"`
	CorrectTurns              float64   `json:"correctTurns"`
	BlindTurnAttempts         float64   `json:"blindTurnAttempts"`
	BlindTurnCorrect          float64   `json:"blindTurnCorrect"`
	SuddenChangeReactionTimes []float64 `json:"suddenChangeReactionTimes"`
	PreTurnDistances          []float64 `json:"preTurnDistances"`
}

// TaxiDriver scores the route following game.
func TaxiDriver(t Telemetry) (ability.Stats, error) {
	s, err := decode[taxiDriverStats](t, "TaxiDriver")
	if err != nil {
		return ability.Stats{}, err
	}
	m := t.Multiplier()

	var out ability.Stats

	if total := s.NorthFacingAttempts + s.SouthFacingAttempts; total > 0 {
		base := (s.NorthFacingCorrect + s.SouthFacingCorrect) / total * 100
		var southBonus float64
		if s.SouthFacingAttempts > 0 {
			southAcc := s.SouthFacingCorrect / s.SouthFacingAttempts
			northAcc := 1.0
			if s.NorthFacingAttempts > 0 {
				northAcc = s.NorthFacingCorrect / s.NorthFacingAttempts
			}
			if southAcc >= 0.9*northAcc {
				southBonus = 20 * southAcc
			} else {
				southBonus = 10 * southAcc
			}
		}
		out.Visual = pct((base + southBonus) * m)
	}

	if s.ForwardAttempts > 0 {
		out.Focus = pct(s.ForwardCorrect / s.ForwardAttempts * 100 * m)
	} else {
		turns := s.TotalTurns
		if turns == 0 {
			turns = 1
		}
		out.Focus = pct(s.CorrectTurns / turns * 100 * m)
	}

	if s.BlindTurnAttempts > 0 {
		out.Memory = pct(s.BlindTurnCorrect / s.BlindTurnAttempts * 100 * m)
	}

	if len(s.SuddenChangeReactionTimes) > 0 {
		normalized := lo.Clamp((taxiSlowMs-mean(s.SuddenChangeReactionTimes))/(taxiSlowMs-taxiFastMs), 0, 1)
		out.Speed = pct(normalized * 100 * m)
	}

	if len(s.PreTurnDistances) > 0 {
		out.Planning = pct(math.Min(1, mean(s.PreTurnDistances)/taxiMaxDistancePx) * 100 * m)
	}

	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Self-scored games
// ═══════════════════════════════════════════════════════════════════════════

type reportedStats struct {
	Memory   *float64 `json:"stat_memory"`
	Speed    *float64 `json:"stat_speed"`
	Visual   *float64 `json:"stat_visual"`
	Focus    *float64 `json:"stat_focus"`
	Planning *float64 `json:"stat_planning"`
	Emotion  *float64 `json:"stat_emotion"`
}

// Passthrough accepts stats computed by the game client, clamped to range.
func Passthrough(t Telemetry) (ability.Stats, error) {
	s, err := decode[reportedStats](t, "Passthrough")
	if err != nil {
		return ability.Stats{}, err
	}
	return ability.Stats{
		Memory:   optionalPct(s.Memory),
		Speed:    optionalPct(s.Speed),
		Visual:   optionalPct(s.Visual),
		Focus:    optionalPct(s.Focus),
		Planning: optionalPct(s.Planning),
		Emotion:  optionalPct(s.Emotion),
	}, nil
}
