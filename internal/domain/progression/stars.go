package progression

import (
	"context"
	"fmt"
	"time"
)

// StarKey identifies one level of one game for one user.
type StarKey struct {
	UserID string
	GameID string
	Level  int
}

// StarResult reports the outcome of a monotonic star upsert.
type StarResult struct {
	Updated  bool `json:"updated"`
	Star     int  `json:"star"`
	Previous int  `json:"previous"`
}

// LevelStar is a stored rating.
type LevelStar struct {
	Level     int
	Star      int
	UpdatedAt time.Time
}

// ApplyStar resolves an upsert in memory: the stored value only rises.
func ApplyStar(existing, newStar int) StarResult {
	if newStar <= existing {
		return StarResult{Updated: false, Star: existing, Previous: existing}
	}
	return StarResult{Updated: true, Star: newStar, Previous: existing}
}

// StarRepository stores level stars. Upsert must perform the comparison and
// write as one conditional statement.
type StarRepository interface {
	Upsert(ctx context.Context, key StarKey, star int) (StarResult, error)
	Get(ctx context.Context, key StarKey) (int, error)
	ListByGame(ctx context.Context, userID, gameID string) ([]LevelStar, error)
}

// StarMap renders stars as {"level_N_stars": star}.
func StarMap(stars []LevelStar) map[string]int {
	out := make(map[string]int, len(stars))
	for _, s := range stars {
		out[fmt.Sprintf("level_%d_stars", s.Level)] = s.Star
	}
	return out
}

// TotalStars sums ratings.
func TotalStars(stars []LevelStar) int {
	total := 0
	for _, s := range stars {
		total += s.Star
	}
	return total
}
