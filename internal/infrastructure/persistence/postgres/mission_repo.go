package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/mission"
)

// MissionRepository implements mission.Repository.
type MissionRepository struct {
	conn *Connection
}

// NewMissionRepository creates a new MissionRepository.
func NewMissionRepository(conn *Connection) *MissionRepository {
	return &MissionRepository{conn: conn}
}

const missionColumns = `id, user_id, mission_date, slot_index, game_id, label, completed, completed_at, COALESCE(session_key, '')`

// ListForDay returns the day's slots ordered by slot index.
func (r *MissionRepository) ListForDay(ctx context.Context, userID string, day time.Time) ([]mission.Slot, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT `+missionColumns+` FROM daily_missions
		WHERE user_id = $1 AND mission_date = $2
		ORDER BY slot_index
	`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (mission.Slot, error) {
		return scanSlot(row)
	})
}

// InsertSlots writes generated slots; slots that already exist are kept.
func (r *MissionRepository) InsertSlots(ctx context.Context, slots []mission.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(`
			INSERT INTO daily_missions (id, user_id, mission_date, slot_index, game_id, label)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, mission_date, slot_index) DO NOTHING
		`, s.ID, s.UserID, s.Date, s.SlotIndex, s.GameID, s.Label)
	}

	if err := r.conn.Pool().SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert missions: %w", err)
	}
	return nil
}

// Complete marks the first open slot for gameID with one conditional update.
func (r *MissionRepository) Complete(ctx context.Context, userID, gameID string, day time.Time, sessionKey string, at time.Time) (*mission.Slot, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	slot, err := scanSlot(r.conn.QueryRow(ctx, `
		SELECT `+missionColumns+` FROM daily_missions
		WHERE user_id = $1 AND mission_date = $2 AND session_key = $3
		LIMIT 1
	`, userID, day, sessionKey))
	if err == nil {
		return &slot, nil
	}
	if !IsNoRows(err) {
		return nil, fmt.Errorf("failed to look up mission: %w", err)
	}

	slot, err = scanSlot(r.conn.QueryRow(ctx, `
		UPDATE daily_missions
		SET completed = TRUE, completed_at = $5, session_key = $4
		WHERE id = (
			SELECT id FROM daily_missions
			WHERE user_id = $1 AND mission_date = $2 AND game_id = $3 AND NOT completed
			ORDER BY slot_index
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND NOT completed
		RETURNING `+missionColumns,
		userID, day, gameID, sessionKey, at))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to complete mission: %w", err)
	}
	return &slot, nil
}

// CountCompleted counts completed slots on day.
func (r *MissionRepository) CountCompleted(ctx context.Context, userID string, day time.Time) (int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT count(*) FROM daily_missions
		WHERE user_id = $1 AND mission_date = $2 AND completed
	`, userID, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count missions: %w", err)
	}
	return n, nil
}

func scanSlot(row pgx.Row) (mission.Slot, error) {
	var s mission.Slot
	err := row.Scan(&s.ID, &s.UserID, &s.Date, &s.SlotIndex, &s.GameID, &s.Label, &s.Completed, &s.CompletedAt, &s.SessionKey)
	return s, err
}
