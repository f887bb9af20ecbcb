package query

import (
	"context"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/game"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/mission"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY MISSIONS QUERY
// Returns today's missions, assigning them on the first read of the day.
// Concurrent first reads are safe: slot inserts ignore (user, date, slot)
// conflicts and the final list is always re-read from storage.
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyMissionsQuery requests today's missions.
type GetDailyMissionsQuery struct {
	UserID string
}

// DailyMissionsDTO lists today's missions.
type DailyMissionsDTO struct {
	Date           string         `json:"date"`
	Missions       []mission.Slot `json:"missions"`
	CompletedCount int            `json:"completed_count"`
	AllCompleted   bool           `json:"all_completed"`
}

// GetDailyMissionsHandler handles GetDailyMissionsQuery.
type GetDailyMissionsHandler struct {
	missions mission.Repository
	features shared.FeatureGate
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewGetDailyMissionsHandler creates a new handler.
func NewGetDailyMissionsHandler(
	missions mission.Repository,
	features shared.FeatureGate,
	clock timeutil.Clock,
	log *logger.Logger,
) *GetDailyMissionsHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetDailyMissionsHandler{
		missions: missions,
		features: features,
		clock:    clock,
		log:      log.With(logger.Component("daily_missions")),
	}
}

// Handle executes the query.
func (h *GetDailyMissionsHandler) Handle(ctx context.Context, q GetDailyMissionsQuery) (*DailyMissionsDTO, error) {
	uid, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	userID := uid.String()
	today := timeutil.Today(h.clock)

	slots, err := h.missions.ListForDay(ctx, userID, today)
	if err != nil {
		return nil, shared.PersistenceError("mission", "ListForDay", err)
	}

	if len(slots) < mission.DailyMissionCount && shared.FeatureEnabled(h.features, shared.FeatureMissionAutoGen, userID) {
		generated, err := mission.Generate(userID, today, game.Missionable())
		if err != nil {
			return nil, err
		}
		if err := h.missions.InsertSlots(ctx, generated); err != nil {
			return nil, shared.PersistenceError("mission", "InsertSlots", err)
		}
		if slots, err = h.missions.ListForDay(ctx, userID, today); err != nil {
			return nil, shared.PersistenceError("mission", "ListForDay", err)
		}
		h.log.Debug("daily missions assigned", logger.UserID(userID), logger.Int("slots", len(slots)))
	}

	completed := 0
	for _, s := range slots {
		if s.Completed {
			completed++
		}
	}

	if slots == nil {
		slots = []mission.Slot{}
	}
	return &DailyMissionsDTO{
		Date:           timeutil.FormatDay(today),
		Missions:       slots,
		CompletedCount: completed,
		AllCompleted:   mission.Complete(slots),
	}, nil
}
