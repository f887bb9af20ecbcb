package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY
// coin_wallets holds the balance, coin_transactions the append-only log.
// The unique idempotency_key turns repeated deltas into no-ops.
// ══════════════════════════════════════════════════════════════════════════════

// errKeyTaken signals a lost race on the idempotency key inside the tx.
var errKeyTaken = errors.New("idempotency key taken")

// LedgerRepository implements wallet.Ledger.
type LedgerRepository struct {
	conn     *Connection
	validate *validator.Validate
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn, validate: validator.New()}
}

// ApplyDelta changes the balance by req.Delta exactly once per idempotency key.
func (r *LedgerRepository) ApplyDelta(ctx context.Context, req wallet.DeltaRequest) (*wallet.DeltaResult, error) {
	if err := r.validate.Struct(req); err != nil {
		return nil, shared.WrapError("wallet", "ApplyDelta", shared.ErrValidation, "invalid delta request", err)
	}

	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if req.Metadata == nil {
		metadata = []byte("{}")
	}

	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var (
		result    wallet.DeltaResult
		duplicate bool
	)

	err = r.conn.WithRetryTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		duplicate = false

		var recorded int64
		err := tx.QueryRow(ctx, `
			SELECT id, balance_after FROM coin_transactions WHERE idempotency_key = $1
		`, req.IdempotencyKey).Scan(&result.TransactionID, &recorded)
		switch {
		case err == nil:
			duplicate = true
			result.NewBalance = recorded
			return nil
		case !IsNoRows(err):
			return fmt.Errorf("failed to look up idempotency key: %w", err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO coin_wallets (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, req.UserID); err != nil {
			return fmt.Errorf("failed to ensure wallet: %w", err)
		}

		var balance int64
		err = tx.QueryRow(ctx, `
			UPDATE coin_wallets
			SET balance = balance + $2, updated_at = NOW()
			WHERE user_id = $1 AND ($3 OR balance + $2 >= 0)
			RETURNING balance
		`, req.UserID, req.Delta, req.AllowNegative).Scan(&balance)
		if err != nil {
			if IsNoRows(err) {
				return wallet.ErrInsufficientFunds
			}
			return fmt.Errorf("failed to update balance: %w", err)
		}

		txID := uuid.NewString()
		_, err = tx.Exec(ctx, `
			INSERT INTO coin_transactions (id, user_id, delta, balance_after, action_key, ref_id, metadata, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		`, txID, req.UserID, req.Delta, balance, string(req.ActionKey), req.RefID, metadata, req.IdempotencyKey)
		if err != nil {
			if IsUniqueViolation(err) {
				return errKeyTaken
			}
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		result = wallet.DeltaResult{TransactionID: txID, NewBalance: balance, Applied: true}
		return nil
	})

	switch {
	case errors.Is(err, errKeyTaken):
		// The concurrent writer committed; report what it recorded.
		if err := r.conn.QueryRow(ctx, `
			SELECT id, balance_after FROM coin_transactions WHERE idempotency_key = $1
		`, req.IdempotencyKey).Scan(&result.TransactionID, &result.NewBalance); err != nil {
			return nil, fmt.Errorf("failed to read recorded transaction: %w", err)
		}
		duplicate = true
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return nil, shared.WrapError("wallet", "ApplyDelta", shared.ErrValidation, "insufficient funds", err)
	case err != nil:
		return nil, err
	}

	if duplicate {
		result.Applied = false
		return &result, shared.NewDomainError("wallet", "ApplyDelta", shared.ErrAlreadyProcessed, "delta already applied")
	}
	return &result, nil
}

// Balance returns the user's balance, 0 without a wallet row.
func (r *LedgerRepository) Balance(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var balance int64
	err := r.conn.QueryRow(ctx, `SELECT balance FROM coin_wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// History returns the newest transactions first.
func (r *LedgerRepository) History(ctx context.Context, userID string, limit int) ([]wallet.Transaction, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT id, delta, balance_after, action_key, COALESCE(ref_id, ''), metadata, idempotency_key, created_at
		FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (wallet.Transaction, error) {
		var (
			t      wallet.Transaction
			action string
			meta   []byte
		)
		if err := row.Scan(&t.ID, &t.Delta, &t.BalanceAfter, &action, &t.RefID, &meta, &t.IdempotencyKey, &t.CreatedAt); err != nil {
			return t, err
		}
		t.ActionKey = wallet.ActionKey(action)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &t.Metadata); err != nil {
				return t, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		return t, nil
	})
}
