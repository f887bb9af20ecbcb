package query

import (
	"context"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
)

// GetWalletQuery requests the balance and recent ledger entries.
type GetWalletQuery struct {
	UserID string
	Limit  int
}

// WalletDTO is the wallet view.
type WalletDTO struct {
	Balance      int64                `json:"balance"`
	Transactions []wallet.Transaction `json:"transactions"`
}

// GetWalletHandler handles GetWalletQuery.
type GetWalletHandler struct {
	ledger       wallet.Ledger
	defaultLimit int
}

// NewGetWalletHandler creates a new handler.
func NewGetWalletHandler(ledger wallet.Ledger, defaultLimit int) *GetWalletHandler {
	return &GetWalletHandler{ledger: ledger, defaultLimit: defaultLimit}
}

// Handle executes the query.
func (h *GetWalletHandler) Handle(ctx context.Context, q GetWalletQuery) (*WalletDTO, error) {
	uid, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = h.defaultLimit
	}

	balance, err := h.ledger.Balance(ctx, uid.String())
	if err != nil {
		return nil, shared.PersistenceError("wallet", "Balance", err)
	}
	history, err := h.ledger.History(ctx, uid.String(), shared.PageLimit(q.Limit))
	if err != nil {
		return nil, shared.PersistenceError("wallet", "History", err)
	}
	if history == nil {
		history = []wallet.Transaction{}
	}

	return &WalletDTO{Balance: balance, Transactions: history}, nil
}
