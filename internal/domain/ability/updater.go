package ability

import (
	"context"
	"math"
	"time"
)

// Learning rates for the smoothing rule.
const (
	FirstPlayRate = 0.1
	ReplayRate    = 0.05
)

// Profile is a user's long-run ability estimate.
type Profile struct {
	UserID    string
	Stats     Stats
	UpdatedAt time.Time
}

// Result is the outcome of folding one session into a profile.
type Result struct {
	// Profile is the full profile after the update.
	Profile Stats
	// NewStats holds only the dimensions the session measured.
	NewStats map[Dimension]int
	// Changes is new - (current ?? 0) for each measured dimension.
	Changes      map[Dimension]int
	LearningRate float64
}

// LearningRate picks the smoothing factor for an attempt.
func LearningRate(isReplay bool) float64 {
	if isReplay {
		return ReplayRate
	}
	return FirstPlayRate
}

// Update applies the smoothing rule per dimension:
//
//	session nil  -> unchanged
//	current nil  -> bootstrap to the session value
//	otherwise    -> clamp(round(cur + (s - cur) * rate), 0, 100)
func Update(current Stats, session Stats, isReplay bool) Result {
	rate := LearningRate(isReplay)
	res := Result{
		Profile:      current,
		NewStats:     make(map[Dimension]int),
		Changes:      make(map[Dimension]int),
		LearningRate: rate,
	}

	for _, d := range Dimensions {
		s := session.Get(d)
		if s == nil {
			continue
		}
		cur := current.Get(d)

		var next int
		if cur == nil {
			next = Clamp(*s)
			res.Changes[d] = next
		} else {
			next = Smooth(*cur, *s, rate)
			res.Changes[d] = next - *cur
		}

		res.Profile.Set(d, Int(next))
		res.NewStats[d] = next
	}

	return res
}

// Smooth moves cur toward target by rate and clamps to the score range.
func Smooth(cur, target int, rate float64) int {
	return Clamp(int(math.Round(float64(cur) + float64(target-cur)*rate)))
}

// Clamp bounds v to [MinScore, MaxScore].
func Clamp(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// ProfileStore persists ability profiles.
type ProfileStore interface {
	FindByUser(ctx context.Context, userID string) (*Profile, error)
}
