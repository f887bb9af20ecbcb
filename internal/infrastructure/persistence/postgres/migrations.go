package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// Versioned SQL kept in Go constants, applied in order at startup. Each
// migration runs in its own transaction together with its bookkeeping row.
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator for the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[version] = at
	}
	return out, rows.Err()
}

// Migrate applies all pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return ran, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("%w: version %d (%s): %w", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		ran++
	}

	return ran, nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range done {
		last = max(last, v)
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := done[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// Pending counts migrations that have not been applied yet.
func (m *Migrator) Pending(ctx context.Context) (int, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, mig := range status {
		if !mig.IsApplied {
			n++
		}
	}
	return n, nil
}

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_profiles_and_sessions", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_level_stars", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_coin_ledger", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_checkins_and_badges", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_daily_missions", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ABILITY PROFILES + SESSION AUDIT LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS ability_profiles (
    user_id    UUID PRIMARY KEY,
    memory     SMALLINT CHECK (memory BETWEEN 0 AND 100),
    speed      SMALLINT CHECK (speed BETWEEN 0 AND 100),
    visual     SMALLINT CHECK (visual BETWEEN 0 AND 100),
    focus      SMALLINT CHECK (focus BETWEEN 0 AND 100),
    planning   SMALLINT CHECK (planning BETWEEN 0 AND 100),
    emotion    SMALLINT CHECK (emotion BETWEEN 0 AND 100),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS game_sessions (
    id               UUID PRIMARY KEY,
    user_id          UUID NOT NULL,
    game_id          VARCHAR(64) NOT NULL,
    level            INTEGER NOT NULL CHECK (level >= 0),
    submission_key   VARCHAR(256) NOT NULL,
    memory           SMALLINT,
    speed            SMALLINT,
    visual           SMALLINT,
    focus            SMALLINT,
    planning         SMALLINT,
    emotion          SMALLINT,
    score            DOUBLE PRECISION NOT NULL DEFAULT 0,
    stars            SMALLINT,
    duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_replay        BOOLEAN NOT NULL DEFAULT FALSE,
    learning_rate    DOUBLE PRECISION NOT NULL,
    raw_data         JSONB NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_game_sessions_submission_key UNIQUE (submission_key)
);

CREATE INDEX IF NOT EXISTS idx_game_sessions_user_game_level
    ON game_sessions (user_id, game_id, level);
CREATE INDEX IF NOT EXISTS idx_game_sessions_user_created
    ON game_sessions (user_id, created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS game_sessions;
DROP TABLE IF EXISTS ability_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: LEVEL STARS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS level_stars (
    user_id    UUID NOT NULL,
    game_id    VARCHAR(64) NOT NULL,
    level      INTEGER NOT NULL CHECK (level > 0),
    star       SMALLINT NOT NULL CHECK (star BETWEEN 0 AND 3),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, game_id, level)
);
`

const migration002Down = `
DROP TABLE IF EXISTS level_stars;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: COIN LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS coin_wallets (
    user_id    UUID PRIMARY KEY,
    balance    BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS coin_transactions (
    id              UUID PRIMARY KEY,
    user_id         UUID NOT NULL REFERENCES coin_wallets (user_id),
    delta           BIGINT NOT NULL CHECK (delta <> 0),
    balance_after   BIGINT NOT NULL,
    action_key      VARCHAR(64) NOT NULL,
    ref_id          VARCHAR(256),
    metadata        JSONB NOT NULL DEFAULT '{}'::jsonb,
    idempotency_key VARCHAR(320) NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_coin_transactions_idempotency_key UNIQUE (idempotency_key)
);

CREATE INDEX IF NOT EXISTS idx_coin_transactions_user_created
    ON coin_transactions (user_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS coin_transactions;
DROP TABLE IF EXISTS coin_wallets;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CHECKINS + BADGES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS checkin_days (
    user_id      UUID NOT NULL,
    checkin_date DATE NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, checkin_date)
);

CREATE TABLE IF NOT EXISTS checkin_summaries (
    user_id           UUID PRIMARY KEY,
    current_streak    INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
    longest_streak    INTEGER NOT NULL DEFAULT 0 CHECK (longest_streak >= current_streak),
    total_checkins    INTEGER NOT NULL DEFAULT 0 CHECK (total_checkins >= 0),
    last_checkin_date DATE,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_badges (
    user_id     UUID NOT NULL,
    badge_id    VARCHAR(64) NOT NULL,
    unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, badge_id)
);
`

const migration004Down = `
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS checkin_summaries;
DROP TABLE IF EXISTS checkin_days;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: DAILY MISSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
CREATE TABLE IF NOT EXISTS daily_missions (
    id           UUID PRIMARY KEY,
    user_id      UUID NOT NULL,
    mission_date DATE NOT NULL,
    slot_index   SMALLINT NOT NULL CHECK (slot_index >= 0),
    game_id      VARCHAR(64) NOT NULL,
    label        VARCHAR(128) NOT NULL,
    completed    BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMPTZ,
    session_key  VARCHAR(320),

    CONSTRAINT uq_daily_missions_slot UNIQUE (user_id, mission_date, slot_index)
);

CREATE INDEX IF NOT EXISTS idx_daily_missions_open
    ON daily_missions (user_id, mission_date, game_id) WHERE NOT completed;
`

const migration005Down = `
DROP TABLE IF EXISTS daily_missions;
`
