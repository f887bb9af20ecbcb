package query

import (
	"context"

	"github.com/samber/lo"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
)

// GetBadgesQuery lists the badge catalog with the user's unlock state.
type GetBadgesQuery struct {
	UserID string
}

// BadgesDTO is the badge wall.
type BadgesDTO struct {
	Badges        []streak.BadgeStatus `json:"badges"`
	UnlockedCount int                  `json:"unlocked_count"`
	TotalCount    int                  `json:"total_count"`
}

// GetBadgesHandler handles GetBadgesQuery.
type GetBadgesHandler struct {
	badges streak.BadgeRepository
}

// NewGetBadgesHandler creates a new handler.
func NewGetBadgesHandler(badges streak.BadgeRepository) *GetBadgesHandler {
	return &GetBadgesHandler{badges: badges}
}

// Handle executes the query.
func (h *GetBadgesHandler) Handle(ctx context.Context, q GetBadgesQuery) (*BadgesDTO, error) {
	uid, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}

	unlocked, err := h.badges.ListUnlocked(ctx, uid.String())
	if err != nil {
		return nil, shared.PersistenceError("streak", "ListUnlocked", err)
	}

	statuses := streak.Statuses(unlocked)
	return &BadgesDTO{
		Badges:        statuses,
		UnlockedCount: lo.CountBy(statuses, func(s streak.BadgeStatus) bool { return s.Unlocked }),
		TotalCount:    len(statuses),
	}, nil
}
