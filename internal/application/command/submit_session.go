package command

import (
	"context"
	"strings"

	"github.com/DeclineZ/brain-train-sub002/internal/application/saga"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT SESSION COMMAND
// Entry point for a finished gameplay attempt. All progression work happens
// in the session submission saga.
// ══════════════════════════════════════════════════════════════════════════════

// MaxIdempotencyKeyLength bounds client supplied submission keys.
const MaxIdempotencyKeyLength = 128

// SubmitSessionCommand carries one attempt.
type SubmitSessionCommand struct {
	UserID  string
	GameID  string
	RawData []byte

	// IdempotencyKey is the client's Idempotency-Key header, optional.
	IdempotencyKey string
}

// Validate validates the command.
func (c SubmitSessionCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if len(c.IdempotencyKey) > MaxIdempotencyKeyLength {
		return shared.ValidationError("session", "Submit", "idempotency key is too long")
	}
	return nil
}

// SessionSubmitter runs the submission saga.
type SessionSubmitter interface {
	Execute(ctx context.Context, input saga.SubmissionInput) (*saga.SubmissionResult, error)
}

// SubmitSessionHandler handles SubmitSessionCommand.
type SubmitSessionHandler struct {
	saga SessionSubmitter
}

// NewSubmitSessionHandler creates a new handler.
func NewSubmitSessionHandler(s SessionSubmitter) *SubmitSessionHandler {
	return &SubmitSessionHandler{saga: s}
}

// Handle executes the command.
func (h *SubmitSessionHandler) Handle(ctx context.Context, cmd SubmitSessionCommand) (*saga.SubmissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	uid, _ := shared.NewUserID(cmd.UserID)
	input := saga.SubmissionInput{
		UserID:  uid.String(),
		GameID:  cmd.GameID,
		RawData: cmd.RawData,
	}
	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" {
		// Scope client keys to the user so two users cannot collide.
		input.SubmissionKey = input.UserID + ":" + key
	}

	return h.saga.Execute(ctx, input)
}
