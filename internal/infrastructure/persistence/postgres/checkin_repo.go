package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
)

// CheckinRepository implements streak.Repository.
type CheckinRepository struct {
	conn *Connection
}

// NewCheckinRepository creates a new CheckinRepository.
func NewCheckinRepository(conn *Connection) *CheckinRepository {
	return &CheckinRepository{conn: conn}
}

const summaryColumns = `current_streak, longest_streak, total_checkins, last_checkin_date`

// RecordCheckin inserts the day row and advances the summary under a row lock.
// The (user_id, checkin_date) primary key makes a second call a no-op.
func (r *CheckinRepository) RecordCheckin(ctx context.Context, userID string, day time.Time) (streak.Summary, bool, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var (
		summary streak.Summary
		created bool
	)

	err := r.conn.WithRetryTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO checkin_days (user_id, checkin_date) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, day)
		if err != nil {
			return fmt.Errorf("failed to insert checkin day: %w", err)
		}
		created = tag.RowsAffected() == 1

		if _, err := tx.Exec(ctx, `INSERT INTO checkin_summaries (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID); err != nil {
			return fmt.Errorf("failed to ensure checkin summary: %w", err)
		}

		summary, err = scanSummary(tx.QueryRow(ctx, `
			SELECT `+summaryColumns+` FROM checkin_summaries WHERE user_id = $1 FOR UPDATE
		`, userID), userID)
		if err != nil {
			return fmt.Errorf("failed to lock checkin summary: %w", err)
		}

		if !created {
			return nil
		}

		summary = summary.Advance(day)
		_, err = tx.Exec(ctx, `
			UPDATE checkin_summaries
			SET current_streak = $2, longest_streak = $3, total_checkins = $4,
			    last_checkin_date = $5, updated_at = NOW()
			WHERE user_id = $1
		`, userID, summary.CurrentStreak, summary.LongestStreak, summary.TotalCheckins, summary.LastCheckinDate)
		if err != nil {
			return fmt.Errorf("failed to update checkin summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return streak.Summary{}, false, err
	}
	return summary, created, nil
}

// GetSummary returns the stored summary or a zero one.
func (r *CheckinRepository) GetSummary(ctx context.Context, userID string) (streak.Summary, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	summary, err := scanSummary(r.conn.QueryRow(ctx, `
		SELECT `+summaryColumns+` FROM checkin_summaries WHERE user_id = $1
	`, userID), userID)
	if err != nil {
		if IsNoRows(err) {
			return streak.Summary{UserID: userID}, nil
		}
		return streak.Summary{}, fmt.Errorf("failed to get checkin summary: %w", err)
	}
	return summary, nil
}

// IsCheckedIn reports whether day has a checkin row.
func (r *CheckinRepository) IsCheckedIn(ctx context.Context, userID string, day time.Time) (bool, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM checkin_days WHERE user_id = $1 AND checkin_date = $2)
	`, userID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check checkin: %w", err)
	}
	return exists, nil
}

// ListDays returns checkin dates in [from, to], oldest first.
func (r *CheckinRepository) ListDays(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT checkin_date FROM checkin_days
		WHERE user_id = $1 AND checkin_date BETWEEN $2 AND $3
		ORDER BY checkin_date
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkin days: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

func scanSummary(row pgx.Row, userID string) (streak.Summary, error) {
	s := streak.Summary{UserID: userID}
	err := row.Scan(&s.CurrentStreak, &s.LongestStreak, &s.TotalCheckins, &s.LastCheckinDate)
	return s, err
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements streak.BadgeRepository.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// Unlock inserts badges and returns the ids that were newly granted.
func (r *BadgeRepository) Unlock(ctx context.Context, userID string, badgeIDs []string) ([]string, error) {
	if len(badgeIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		INSERT INTO user_badges (user_id, badge_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
		RETURNING badge_id
	`, userID, badgeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock badges: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListUnlocked returns badge id -> unlock time.
func (r *BadgeRepository) ListUnlocked(ctx context.Context, userID string) (map[string]time.Time, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `SELECT badge_id, unlocked_at FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			id string
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		out[id] = at
	}
	return out, rows.Err()
}
