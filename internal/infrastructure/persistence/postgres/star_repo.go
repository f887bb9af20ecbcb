package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/progression"
)

// StarRepository implements progression.StarRepository.
type StarRepository struct {
	conn *Connection
}

// NewStarRepository creates a new StarRepository.
func NewStarRepository(conn *Connection) *StarRepository {
	return &StarRepository{conn: conn}
}

// upsertStarSQL raises the stored star only when the new one is higher.
// "prior" reads the snapshot before the write; "raised" is empty when the
// conditional update did not fire.
const upsertStarSQL = `
	WITH prior AS (
		SELECT star FROM level_stars
		WHERE user_id = $1 AND game_id = $2 AND level = $3
	), raised AS (
		INSERT INTO level_stars (user_id, game_id, level, star, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, game_id, level) DO UPDATE
			SET star = EXCLUDED.star, updated_at = EXCLUDED.updated_at
			WHERE level_stars.star < EXCLUDED.star
		RETURNING star
	)
	SELECT (SELECT star FROM prior), (SELECT star FROM raised)`

// Upsert stores star for the level if it beats the current rating.
func (r *StarRepository) Upsert(ctx context.Context, key progression.StarKey, star int) (progression.StarResult, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var prior, raised *int
	if err := r.conn.QueryRow(ctx, upsertStarSQL, key.UserID, key.GameID, key.Level, star).Scan(&prior, &raised); err != nil {
		return progression.StarResult{}, fmt.Errorf("failed to upsert stars: %w", err)
	}

	return resolveStar(prior, raised, func() (int, error) { return r.Get(ctx, key) })
}

// resolveStar turns the CTE output into a StarResult. When the conditional
// update did not fire the snapshot in prior may predate a concurrent insert,
// so the committed row is read back for Star and Previous.
func resolveStar(prior, raised *int, committed func() (int, error)) (progression.StarResult, error) {
	previous := 0
	if prior != nil {
		previous = *prior
	}
	if raised != nil && *raised > previous {
		return progression.StarResult{Updated: true, Star: *raised, Previous: previous}, nil
	}

	current, err := committed()
	if err != nil {
		return progression.StarResult{}, err
	}
	return progression.StarResult{Updated: false, Star: current, Previous: current}, nil
}

// Get returns the stored star, 0 when the level was never rated.
func (r *StarRepository) Get(ctx context.Context, key progression.StarKey) (int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var star int
	err := r.conn.QueryRow(ctx, `
		SELECT star FROM level_stars WHERE user_id = $1 AND game_id = $2 AND level = $3
	`, key.UserID, key.GameID, key.Level).Scan(&star)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get stars: %w", err)
	}
	return star, nil
}

// ListByGame returns all rated levels of a game ordered by level.
func (r *StarRepository) ListByGame(ctx context.Context, userID, gameID string) ([]progression.LevelStar, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT level, star, updated_at FROM level_stars
		WHERE user_id = $1 AND game_id = $2
		ORDER BY level
	`, userID, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stars: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (progression.LevelStar, error) {
		var s progression.LevelStar
		err := row.Scan(&s.Level, &s.Star, &s.UpdatedAt)
		return s, err
	})
}
