// Package progression covers per-level star ratings and coin rewards for
// completed attempts.
package progression

import (
	"math"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/game"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// Reward constants.
const (
	BaseLevelReward   = 20
	LevelRewardStep   = 0.1
	ScorePerCoin      = 1500
	ReplayRewardRatio = 0.2
)

// starQuality scales the level reward by stars earned.
var starQuality = map[int]float64{
	3: 1.0,
	2: 0.7,
	1: 0.5,
	0: 0.0,
}

// RewardInput is everything the reward formula looks at.
type RewardInput struct {
	GameID        string
	Level         int
	StarsEarned   *int
	PreviousStars int
	Score         float64
}

// CalculateCoinReward returns the coins earned for one attempt, never negative.
//
// Score-driven games pay max(1, floor(score/1500)). Level-driven games pay
// floor(20*(1+(level-1)*0.1)) scaled by star quality, and only a fifth of
// that when the attempt did not improve on the stored stars.
func CalculateCoinReward(in RewardInput) int {
	if in.Level <= 0 || in.StarsEarned == nil || *in.StarsEarned < 0 {
		return 0
	}
	stars := shared.ClampStars(*in.StarsEarned)

	if game.IsScoreDriven(in.GameID) {
		return max(1, int(math.Floor(math.Max(0, in.Score)/ScorePerCoin)))
	}

	base := math.Floor(BaseLevelReward * (1 + float64(max(1, in.Level)-1)*LevelRewardStep))
	reward := base * starQuality[stars]
	if stars <= in.PreviousStars {
		reward *= ReplayRewardRatio
	}

	return max(0, int(math.Floor(reward)))
}
