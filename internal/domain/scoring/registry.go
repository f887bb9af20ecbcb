package scoring

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/game"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// Calculator maps one game's telemetry to ability stats. Implementations are pure.
type Calculator func(t Telemetry) (ability.Stats, error)

// ═══════════════════════════════════════════════════════════════════════════
// Registry
// ═══════════════════════════════════════════════════════════════════════════

// Registry resolves a game id to its Calculator.
type Registry struct {
	calculators map[string]Calculator
}

// NewRegistry returns a registry preloaded with every known game family.
func NewRegistry() *Registry {
	r := &Registry{calculators: make(map[string]Calculator)}

	r.Register(game.Example, Example)
	r.Register(game.CardMatch, CardMatch)
	r.Register(game.SensorLock, SensorLock)
	r.Register(game.BilliardsMath, BilliardsMath)
	r.Register(game.FloatingBallMath, FloatingBallMath)
	r.Register(game.WormTrain, Passthrough)
	r.Register(game.DreamDirect, DreamDirect)
	r.Register(game.PinkCup, PinkCup)
	r.Register(game.MysterySound, Passthrough)
	r.Register(game.TubeSort, TubeSort)
	r.Register(game.Miner, Miner)
	r.Register(game.GridHunter, GridHunter)
	r.Register(game.TaxiDriver, TaxiDriver)

	return r
}

// Register binds calc to gameID, replacing any previous binding.
// Not safe to call concurrently with Calculate.
func (r *Registry) Register(gameID string, calc Calculator) {
	r.calculators[gameID] = calc
}

// Lookup returns the calculator for gameID.
func (r *Registry) Lookup(gameID string) (Calculator, bool) {
	calc, ok := r.calculators[gameID]
	return calc, ok
}

// Calculate scores t with the calculator registered for gameID.
func (r *Registry) Calculate(gameID string, t Telemetry) (ability.Stats, error) {
	calc, ok := r.calculators[gameID]
	if !ok {
		return ability.Stats{}, shared.ValidationError("scoring", "Calculate", "no calculator for game "+gameID)
	}
	return calc(t)
}

// Games lists registered game ids in order.
func (r *Registry) Games() []string {
	ids := lo.Keys(r.calculators)
	sort.Strings(ids)
	return ids
}

// ═══════════════════════════════════════════════════════════════════════════
// Helpers
// ═══════════════════════════════════════════════════════════════════════════

// pct clamps v to [0,100] and rounds it.
func pct(v float64) *int {
	if math.IsNaN(v) {
		v = 0
	}
	return ability.Int(int(math.Round(lo.Clamp(v, 0, 100))))
}

// ratio divides guarding against empty denominators.
func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// optionalPct converts an optional passthrough value.
func optionalPct(v *float64) *int {
	if v == nil {
		return nil
	}
	return pct(*v)
}
