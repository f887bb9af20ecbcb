// Package game holds the static catalog of mini-games known to the
// progression engine.
package game

import (
	"sort"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// RewardFamily selects how coin rewards are computed for a game.
type RewardFamily int

const (
	// LevelDriven games pay by level and star quality.
	LevelDriven RewardFamily = iota
	// ScoreDriven games pay by raw score.
	ScoreDriven
)

// Game describes one catalog entry.
type Game struct {
	ID     string
	Title  string
	Reward RewardFamily
	// Missionable games can be assigned as daily missions.
	Missionable bool
}

// IsScoreDriven reports whether rewards follow the score formula.
func (g Game) IsScoreDriven() bool {
	return g.Reward == ScoreDriven
}

// Catalog ids.
const (
	Example          = "game-00-example"
	CardMatch        = "game-01-cardmatch"
	SensorLock       = "game-02-sensorlock"
	BilliardsMath    = "game-03-billiards-math"
	FloatingBallMath = "game-04-floating-ball-math"
	WormTrain        = "game-05-wormtrain"
	DreamDirect      = "game-06-dreamdirect"
	PinkCup          = "game-07-pinkcup"
	MysterySound     = "game-08-mysterysound"
	TubeSort         = "game-09-tube-sort"
	Miner            = "game-10-miner"
	GridHunter       = "game-12-gridhunter"
	TaxiDriver       = "game-15-taxidriver"
)

var catalog = map[string]Game{
	Example:          {ID: Example, Title: "Example"},
	CardMatch:        {ID: CardMatch, Title: "จับคู่การ์ด", Missionable: true},
	SensorLock:       {ID: SensorLock, Title: "Sensor Lock", Reward: ScoreDriven, Missionable: true},
	BilliardsMath:    {ID: BilliardsMath, Title: "Billiards Math", Missionable: true},
	FloatingBallMath: {ID: FloatingBallMath, Title: "Floating Ball Math", Missionable: true},
	WormTrain:        {ID: WormTrain, Title: "Worm Train", Missionable: true},
	DreamDirect:      {ID: DreamDirect, Title: "Dream Direct", Missionable: true},
	PinkCup:          {ID: PinkCup, Title: "Pink Cup", Missionable: true},
	MysterySound:     {ID: MysterySound, Title: "Mystery Sound", Missionable: true},
	TubeSort:         {ID: TubeSort, Title: "Tube Sort", Missionable: true},
	Miner:            {ID: Miner, Title: "Miner", Missionable: true},
	GridHunter:       {ID: GridHunter, Title: "Grid Hunter", Missionable: true},
	TaxiDriver:       {ID: TaxiDriver, Title: "Taxi Driver", Missionable: true},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Game, bool) {
	g, ok := catalog[id]
	return g, ok
}

// Get returns the catalog entry for id or a validation error.
func Get(id string) (Game, error) {
	g, ok := catalog[id]
	if !ok {
		return Game{}, shared.ValidationError("game", "Get", "unknown game id "+id)
	}
	return g, nil
}

// IsScoreDriven reports whether id uses the score reward formula.
func IsScoreDriven(id string) bool {
	g, ok := catalog[id]
	return ok && g.IsScoreDriven()
}

// Title returns the display title for id, or id itself when unknown.
func Title(id string) string {
	if g, ok := catalog[id]; ok {
		return g.Title
	}
	return id
}

// All returns every game sorted by id.
func All() []Game {
	out := make([]Game, 0, len(catalog))
	for _, g := range catalog {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Missionable returns the games eligible for daily missions, sorted by id.
func Missionable() []Game {
	all := All()
	out := all[:0]
	for _, g := range all {
		if g.Missionable {
			out = append(out, g)
		}
	}
	return out
}
