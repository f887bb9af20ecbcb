package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/session"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY
// Audit log of attempts plus the critical "record + profile update" write.
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements session.Store.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const sessionColumns = `
	id, user_id, game_id, level, submission_key,
	memory, speed, visual, focus, planning, emotion,
	score, stars, duration_seconds, is_replay, learning_rate, raw_data, created_at`

// CountPrior counts stored attempts at the exact (user, game, level).
func (r *SessionRepository) CountPrior(ctx context.Context, userID, gameID string, level int) (int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT count(*) FROM game_sessions
		WHERE user_id = $1 AND game_id = $2 AND level = $3
	`, userID, gameID, level).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// RecordAttempt inserts the audit record and, when update is set, rewrites
// the locked profile row in the same transaction.
func (r *SessionRepository) RecordAttempt(ctx context.Context, rec *session.Record, update session.ProfileUpdate) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	return r.conn.WithRetryTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO game_sessions (`+sessionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			rec.ID, rec.UserID, rec.GameID, rec.Level, rec.SubmissionKey,
			rec.Stats.Memory, rec.Stats.Speed, rec.Stats.Visual,
			rec.Stats.Focus, rec.Stats.Planning, rec.Stats.Emotion,
			rec.Score, rec.Stars, rec.DurationSeconds, rec.IsReplay, rec.LearningRate,
			rec.RawData, rec.CreatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.NewDomainError("session", "RecordAttempt", shared.ErrAlreadyProcessed, "submission already recorded")
			}
			return fmt.Errorf("failed to insert session: %w", err)
		}

		if update == nil {
			return nil
		}

		current, err := lockProfile(ctx, tx, rec.UserID)
		if err != nil {
			return err
		}
		return saveProfile(ctx, tx, rec.UserID, update(current), rec.CreatedAt)
	})
}

// FindByKey loads the user's attempt stored under a submission key.
func (r *SessionRepository) FindByKey(ctx context.Context, userID, submissionKey string) (*session.Record, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE submission_key = $1 AND user_id = $2`,
		submissionKey, userID)

	var rec session.Record
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.GameID, &rec.Level, &rec.SubmissionKey,
		&rec.Stats.Memory, &rec.Stats.Speed, &rec.Stats.Visual,
		&rec.Stats.Focus, &rec.Stats.Planning, &rec.Stats.Emotion,
		&rec.Score, &rec.Stars, &rec.DurationSeconds, &rec.IsReplay, &rec.LearningRate,
		&rec.RawData, &rec.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("session", "FindByKey", shared.ErrNotFound, "session not found", err)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &rec, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements ability.ProfileStore.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// FindByUser returns the profile or an ErrNotFound error.
func (r *ProfileRepository) FindByUser(ctx context.Context, userID string) (*ability.Profile, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	p := ability.Profile{UserID: userID}
	err := r.conn.QueryRow(ctx, `
		SELECT memory, speed, visual, focus, planning, emotion, updated_at
		FROM ability_profiles WHERE user_id = $1
	`, userID).Scan(statDests(&p.Stats, &p.UpdatedAt)...)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("ability", "FindByUser", shared.ErrNotFound, "profile not found", err)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}

// lockProfile makes sure the row exists and locks it for the transaction.
func lockProfile(ctx context.Context, tx pgx.Tx, userID string) (ability.Stats, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO ability_profiles (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID); err != nil {
		return ability.Stats{}, fmt.Errorf("failed to ensure profile: %w", err)
	}

	var stats ability.Stats
	var updated time.Time
	err := tx.QueryRow(ctx, `
		SELECT memory, speed, visual, focus, planning, emotion, updated_at
		FROM ability_profiles WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(statDests(&stats, &updated)...)
	if err != nil {
		return ability.Stats{}, fmt.Errorf("failed to lock profile: %w", err)
	}
	return stats, nil
}

func saveProfile(ctx context.Context, tx pgx.Tx, userID string, s ability.Stats, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE ability_profiles
		SET memory = $2, speed = $3, visual = $4, focus = $5, planning = $6, emotion = $7, updated_at = $8
		WHERE user_id = $1
	`, userID, s.Memory, s.Speed, s.Visual, s.Focus, s.Planning, s.Emotion, at)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func statDests(s *ability.Stats, updated *time.Time) []any {
	return []any{&s.Memory, &s.Speed, &s.Visual, &s.Focus, &s.Planning, &s.Emotion, updated}
}
