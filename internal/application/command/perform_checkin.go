// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
	"github.com/DeclineZ/brain-train-sub002/pkg/metrics"
	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERFORM CHECKIN COMMAND
// Marks today as checked in, advances the streak, unlocks badges and pays the
// daily bonus. Safe to call any number of times per day.
// ══════════════════════════════════════════════════════════════════════════════

// PerformCheckinCommand requests a daily checkin.
type PerformCheckinCommand struct {
	UserID string
}

// Validate validates the command.
func (c PerformCheckinCommand) Validate() error {
	_, err := shared.NewUserID(c.UserID)
	return err
}

// PerformCheckinHandler handles PerformCheckinCommand.
type PerformCheckinHandler struct {
	checkins streak.Repository
	badges   streak.BadgeRepository
	ledger   wallet.Ledger
	events   shared.EventPublisher
	features shared.FeatureGate
	metrics  *metrics.Manager
	clock    timeutil.Clock
	log      *logger.Logger
}

// CheckinDeps groups the collaborators of PerformCheckinHandler.
type CheckinDeps struct {
	Checkins streak.Repository
	Badges   streak.BadgeRepository
	Ledger   wallet.Ledger
	Events   shared.EventPublisher
	Features shared.FeatureGate
	Metrics  *metrics.Manager
	Clock    timeutil.Clock
	Logger   *logger.Logger
}

// NewPerformCheckinHandler creates a new handler.
func NewPerformCheckinHandler(deps CheckinDeps) *PerformCheckinHandler {
	h := &PerformCheckinHandler{
		checkins: deps.Checkins,
		badges:   deps.Badges,
		ledger:   deps.Ledger,
		events:   deps.Events,
		features: deps.Features,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		log:      deps.Logger,
	}
	if h.events == nil {
		h.events = shared.NopPublisher{}
	}
	if h.clock == nil {
		h.clock = timeutil.SystemClock{}
	}
	if h.log == nil {
		h.log = logger.Nop()
	}
	h.log = h.log.With(logger.Component("perform_checkin"))
	return h
}

// Handle executes the checkin.
func (h *PerformCheckinHandler) Handle(ctx context.Context, cmd PerformCheckinCommand) (*streak.CheckinResult, error) {
	uid, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	cmd.UserID = uid.String()

	today := timeutil.Today(h.clock)
	day := timeutil.FormatDay(today)

	// Step 1: mark the day and advance the summary atomically
	summary, created, err := h.checkins.RecordCheckin(ctx, cmd.UserID, today)
	if err != nil {
		return nil, shared.PersistenceError("streak", "RecordCheckin", err)
	}

	// Step 2: unlock badges; the storage layer only reports fresh inserts
	var newIDs []string
	if eligible := streak.Eligible(summary); len(eligible) > 0 {
		newIDs, err = h.badges.Unlock(ctx, cmd.UserID, eligible)
		if err != nil {
			return nil, shared.PersistenceError("streak", "UnlockBadges", err)
		}
	}

	result := &streak.CheckinResult{
		Success:     true,
		StreakCount: summary.CurrentStreak,
		NewBadges:   streak.Badges(newIDs),
		Message:     streak.Message(summary.CurrentStreak, created),
		BaseAmount:  streak.BaseCheckinBonus,
		Multiplier:  streak.BonusMultiplier(summary.TotalCheckins),
		NewCheckin:  created,
	}

	// Step 3: daily bonus, deduplicated by the ledger key
	if shared.FeatureEnabled(h.features, shared.FeatureCheckinBonus, cmd.UserID) {
		h.grantBonus(ctx, cmd.UserID, day, summary, result)
	}

	h.metrics.RecordCheckin(created)
	h.publish(cmd.UserID, day, summary, created, result)

	h.log.Info("checkin processed",
		logger.UserID(cmd.UserID),
		logger.Int("streak", summary.CurrentStreak),
		logger.Bool("new_checkin", created),
		logger.Int("new_badges", len(result.NewBadges)),
		logger.Coins(result.CoinsEarned),
	)

	return result, nil
}

func (h *PerformCheckinHandler) grantBonus(ctx context.Context, userID, day string, summary streak.Summary, result *streak.CheckinResult) {
	bonus := streak.CheckinBonus(summary.TotalCheckins)
	res, err := wallet.Apply(ctx, h.ledger, wallet.DeltaRequest{
		UserID:         userID,
		Delta:          bonus,
		ActionKey:      wallet.ActionCheckinBonus,
		RefID:          day,
		Metadata:       map[string]any{"streak": summary.CurrentStreak, "total_checkins": summary.TotalCheckins},
		IdempotencyKey: wallet.CheckinBonusKey(userID, day),
	})
	if err != nil {
		h.metrics.RecordStepFailure("checkin_bonus")
		h.log.Warn("checkin bonus failed", logger.UserID(userID), logger.Err(err))
		return
	}

	balance := res.NewBalance
	result.NewBalance = &balance
	if res.Applied {
		result.CoinsEarned = bonus
	}
}

func (h *PerformCheckinHandler) publish(userID, day string, summary streak.Summary, created bool, result *streak.CheckinResult) {
	var events []shared.Event
	if created {
		events = append(events, shared.NewCheckinRecordedEvent(userID, day, summary.CurrentStreak, summary.TotalCheckins))
	}
	for _, b := range result.NewBadges {
		events = append(events, shared.NewBadgeUnlockedEvent(userID, b.ID))
	}
	if result.CoinsEarned > 0 && result.NewBalance != nil {
		events = append(events, shared.NewCoinsGrantedEvent(userID, string(wallet.ActionCheckinBonus), result.CoinsEarned, *result.NewBalance))
	}

	for _, e := range events {
		if err := h.events.Publish(e); err != nil {
			h.log.Warn("publish failed", logger.String("event_type", string(e.EventType())), logger.Err(err))
		}
	}
}

// PerformCheckin is Handle for callers that only carry a user id.
func (h *PerformCheckinHandler) PerformCheckin(ctx context.Context, userID string) (*streak.CheckinResult, error) {
	return h.Handle(ctx, PerformCheckinCommand{UserID: userID})
}
