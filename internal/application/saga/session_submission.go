// Package saga contains multi-step business processes.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/mission"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/progression"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/scoring"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/session"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
	"github.com/DeclineZ/brain-train-sub002/pkg/metrics"
	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION SUBMISSION SAGA
// Turns one gameplay attempt into every progression side effect:
//
//   1. Detect replay (prior attempts at the same level)
//   2. Score the telemetry
//   3. Record the attempt and fold it into the ability profile (critical)
//   4. Raise the level's star rating
//   5. Grant the coin reward
//   6. Complete a matching daily mission
//   7. Perform the daily checkin
//   8. Pay the all-missions bonus
//   9. Publish events and aggregate the result
//
// Only step 3 aborts the saga. Every other step is best-effort: a failure is
// logged, counted and recorded in the state, and the saga moves on. All
// money movements use deterministic ledger keys, so re-running a submission
// never pays twice.
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionStep represents a step in the submission saga.
type SubmissionStep string

const (
	StepValidate      SubmissionStep = "validate"
	StepDetectReplay  SubmissionStep = "detect_replay"
	StepScore         SubmissionStep = "score"
	StepRecord        SubmissionStep = "record_attempt"
	StepStars         SubmissionStep = "update_stars"
	StepReward        SubmissionStep = "grant_reward"
	StepMission       SubmissionStep = "complete_mission"
	StepCheckin       SubmissionStep = "checkin"
	StepAllMissions   SubmissionStep = "all_missions_bonus"
	StepPublishEvents SubmissionStep = "publish_events"
	StepComplete      SubmissionStep = "complete"
)

// SubmissionInput contains input data for the saga.
type SubmissionInput struct {
	UserID  string
	GameID  string
	RawData []byte

	// SubmissionKey identifies the attempt across retries. When empty it is
	// derived from the user, the game and the payload.
	SubmissionKey string
}

// Validate validates the input.
func (i *SubmissionInput) Validate() error {
	uid, err := shared.NewUserID(i.UserID)
	if err != nil {
		return err
	}
	i.UserID = uid.String()

	gid, err := shared.NewGameID(i.GameID)
	if err != nil {
		return err
	}
	i.GameID = gid.String()

	if len(i.RawData) == 0 {
		return shared.ValidationError("session", "Submit", "raw data is required")
	}
	return nil
}

// SubmissionResult is the aggregated outcome returned to the client.
type SubmissionResult struct {
	SessionID            string                  `json:"sessionId"`
	Level                int                     `json:"level"`
	NewStats             map[string]int          `json:"newStats"`
	StatChanges          map[string]int          `json:"statChanges"`
	IsReplay             bool                    `json:"isReplay"`
	LearningRate         float64                 `json:"learningRate"`
	StarInfo             *progression.StarResult `json:"starInfo"`
	EarnedCoins          int64                   `json:"earnedCoins"`
	CheckinResult        *streak.CheckinResult   `json:"checkinResult"`
	MissionResult        *mission.Result         `json:"missionResult"`
	DailyPlayedCount     int                     `json:"dailyPlayedCount"`
	AllMissionsCompleted bool                    `json:"allMissionsCompleted"`
	AllMissionsBonus     int64                   `json:"allMissionsBonus"`
	AlreadyProcessed     bool                    `json:"alreadyProcessed"`

	// FailedSteps lists best-effort steps that did not complete.
	FailedSteps []string `json:"-"`
}

// SubmissionState tracks the state of the saga execution.
type SubmissionState struct {
	Input       SubmissionInput
	CurrentStep SubmissionStep
	StartedAt   time.Time
	Day         time.Time

	Telemetry scoring.Telemetry
	Level     int
	Stats     ability.Stats

	IsReplay     bool
	LearningRate float64
	Record       *session.Record
	Update       *ability.Result
	Duplicate    bool

	Star              *progression.StarResult
	RewardCoins       int64
	RewardBalance     int64
	Mission           *mission.Slot
	CompletedMissions int
	Checkin           *streak.CheckinResult
	AllMissionsBonus  int64
	AllMissionsDone   bool
	BonusBalance      int64

	FailedSteps map[SubmissionStep]error
	FailedStep  SubmissionStep
	Error       error
}

func (s *SubmissionState) fail(step SubmissionStep, err error) {
	if s.FailedSteps == nil {
		s.FailedSteps = make(map[SubmissionStep]error)
	}
	s.FailedSteps[step] = err
}

// SubmissionError is returned when a critical step fails.
type SubmissionError struct {
	Step   SubmissionStep
	UserID string
	GameID string
	Cause  error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("session submission failed at step '%s': %v", e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// CheckinPerformer runs the daily checkin for a user.
type CheckinPerformer interface {
	PerformCheckin(ctx context.Context, userID string) (*streak.CheckinResult, error)
}

// SubmissionDeps groups the collaborators of the saga.
type SubmissionDeps struct {
	Scoring  *scoring.Registry
	Sessions session.Store
	Stars    progression.StarRepository
	Ledger   wallet.Ledger
	Missions mission.Repository
	Checkin  CheckinPerformer
	Events   shared.EventPublisher
	Features shared.FeatureGate
	Metrics  *metrics.Manager
	Clock    timeutil.Clock
	Logger   *logger.Logger
}

// SubmissionConfig contains configuration for the saga.
type SubmissionConfig struct {
	// AllMissionsBonus is paid once a day when every mission is complete.
	AllMissionsBonus int64
}

// DefaultSubmissionConfig returns default configuration.
func DefaultSubmissionConfig() SubmissionConfig {
	return SubmissionConfig{
		AllMissionsBonus: 50,
	}
}

// SessionSubmissionSaga orchestrates a gameplay submission.
type SessionSubmissionSaga struct {
	deps   SubmissionDeps
	config SubmissionConfig
	log    *logger.Logger
}

// NewSessionSubmissionSaga creates a new saga.
func NewSessionSubmissionSaga(deps SubmissionDeps, config SubmissionConfig) *SessionSubmissionSaga {
	if deps.Scoring == nil {
		deps.Scoring = scoring.NewRegistry()
	}
	if deps.Events == nil {
		deps.Events = shared.NopPublisher{}
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &SessionSubmissionSaga{
		deps:   deps,
		config: config,
		log:    deps.Logger.With(logger.Component("session_submission")),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// Execute runs the saga.
func (s *SessionSubmissionSaga) Execute(ctx context.Context, input SubmissionInput) (*SubmissionResult, error) {
	state := &SubmissionState{
		Input:       input,
		CurrentStep: StepValidate,
		StartedAt:   s.deps.Clock.Now(),
		Day:         timeutil.Today(s.deps.Clock),
	}

	if err := state.Input.Validate(); err != nil {
		return nil, s.wrapError(state, err)
	}

	tel, err := scoring.ParseTelemetry(state.Input.RawData)
	if err != nil {
		return nil, s.wrapError(state, err)
	}
	state.Telemetry = tel
	state.Level = tel.Level()

	if state.Input.SubmissionKey == "" {
		key, err := session.Fingerprint(state.Input.UserID, state.Input.GameID, state.Input.RawData)
		if err != nil {
			return nil, s.wrapError(state, err)
		}
		state.Input.SubmissionKey = key
	}

	log := s.log.With(
		logger.UserID(state.Input.UserID),
		logger.GameID(state.Input.GameID),
		logger.LevelPlayed(state.Level),
	)

	// Step 1: Detect replay
	state.CurrentStep = StepDetectReplay
	if err := s.stepDetectReplay(ctx, state); err != nil {
		// Non-critical - first-play rate is used
		s.bestEffort(log, state, err)
	}

	// Step 2: Score
	state.CurrentStep = StepScore
	if err := s.stepScore(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Record attempt + profile update
	state.CurrentStep = StepRecord
	if err := s.stepRecord(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	if state.Level > 0 {
		// Step 4: Stars
		if state.Telemetry.StarsEarned() != nil {
			state.CurrentStep = StepStars
			if err := s.stepStars(ctx, state); err != nil {
				// Non-critical - log but continue
				s.bestEffort(log, state, err)
			}
		}

		// Step 5: Reward
		state.CurrentStep = StepReward
		if err := s.stepReward(ctx, state); err != nil {
			// Non-critical - log but continue
			s.bestEffort(log, state, err)
		}

		// Step 6: Mission
		state.CurrentStep = StepMission
		if err := s.stepMission(ctx, state); err != nil {
			// Non-critical - log but continue
			s.bestEffort(log, state, err)
		}
	}

	// Step 7: Checkin
	state.CurrentStep = StepCheckin
	if err := s.stepCheckin(ctx, state); err != nil {
		// Non-critical - log but continue
		s.bestEffort(log, state, err)
	}

	// Step 8: All missions bonus
	state.CurrentStep = StepAllMissions
	if err := s.stepAllMissions(ctx, state); err != nil {
		// Non-critical - log but continue
		s.bestEffort(log, state, err)
	}

	// Step 9: Publish
	state.CurrentStep = StepPublishEvents
	s.stepPublishEvents(log, state)

	state.CurrentStep = StepComplete
	latency := s.deps.Clock.Now().Sub(state.StartedAt)
	s.deps.Metrics.RecordSession(state.Input.GameID, state.IsReplay, latency)

	log.Info("session submitted",
		logger.String("session_id", state.Record.ID),
		logger.Bool("replay", state.IsReplay),
		logger.Bool("duplicate", state.Duplicate),
		logger.Coins(state.RewardCoins),
		logger.Int("failed_steps", len(state.FailedSteps)),
		logger.Latency(latency),
	)

	return s.buildResult(state), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepDetectReplay counts prior attempts at the exact level.
func (s *SessionSubmissionSaga) stepDetectReplay(ctx context.Context, state *SubmissionState) error {
	state.LearningRate = ability.LearningRate(false)

	count, err := s.deps.Sessions.CountPrior(ctx, state.Input.UserID, state.Input.GameID, state.Level)
	if err != nil {
		return fmt.Errorf("count prior sessions: %w", err)
	}

	state.IsReplay = count > 0
	state.LearningRate = ability.LearningRate(state.IsReplay)
	return nil
}

// stepScore runs the game's calculator.
func (s *SessionSubmissionSaga) stepScore(state *SubmissionState) error {
	stats, err := s.deps.Scoring.Calculate(state.Input.GameID, state.Telemetry)
	if err != nil {
		return err
	}
	state.Stats = stats
	return nil
}

// stepRecord stores the audit record and, for real levels, folds the
// session into the profile inside the same transaction.
func (s *SessionSubmissionSaga) stepRecord(ctx context.Context, state *SubmissionState) error {
	rec := &session.Record{
		ID:              uuid.NewString(),
		UserID:          state.Input.UserID,
		GameID:          state.Input.GameID,
		Level:           state.Level,
		SubmissionKey:   state.Input.SubmissionKey,
		Stats:           state.Stats,
		Score:           state.Telemetry.ScoreValue(),
		Stars:           state.Telemetry.StarsEarned(),
		DurationSeconds: state.Telemetry.DurationSeconds(),
		IsReplay:        state.IsReplay,
		LearningRate:    state.LearningRate,
		RawData:         state.Input.RawData,
		CreatedAt:       state.StartedAt,
	}

	var update session.ProfileUpdate
	if state.Level > 0 {
		update = func(current ability.Stats) ability.Stats {
			res := ability.Update(current, state.Stats, state.IsReplay)
			state.Update = &res
			return res.Profile
		}
	}

	err := s.deps.Sessions.RecordAttempt(ctx, rec, update)
	if err == nil {
		state.Record = rec
		return nil
	}
	if !shared.IsAlreadyProcessed(err) {
		return shared.PersistenceError("session", "RecordAttempt", err)
	}

	// Already recorded: continue with the stored attempt, profile untouched
	state.Duplicate = true
	state.Update = nil
	existing, err := s.deps.Sessions.FindByKey(ctx, state.Input.UserID, state.Input.SubmissionKey)
	if err != nil {
		if shared.IsNotFound(err) {
			return shared.ValidationError("session", "RecordAttempt", "submission key already used")
		}
		return shared.PersistenceError("session", "FindByKey", err)
	}
	if existing.GameID != state.Input.GameID {
		return shared.ValidationError("session", "RecordAttempt", "submission key already used for another game")
	}
	state.Record = existing
	state.IsReplay = existing.IsReplay
	state.LearningRate = existing.LearningRate

	// Later steps follow the stored attempt, not the retried payload
	if tel, err := scoring.ParseTelemetry(existing.RawData); err == nil {
		state.Telemetry = tel
		state.Level = tel.Level()
		state.Stats = existing.Stats
	}
	return nil
}

// stepStars raises the stored star rating when the attempt beat it.
func (s *SessionSubmissionSaga) stepStars(ctx context.Context, state *SubmissionState) error {
	key := progression.StarKey{
		UserID: state.Input.UserID,
		GameID: state.Input.GameID,
		Level:  state.Level,
	}
	res, err := s.deps.Stars.Upsert(ctx, key, shared.ClampStars(*state.Telemetry.StarsEarned()))
	if err != nil {
		return fmt.Errorf("upsert stars: %w", err)
	}
	state.Star = &res
	return nil
}

// stepReward pays the coin reward under the submission's ledger key.
func (s *SessionSubmissionSaga) stepReward(ctx context.Context, state *SubmissionState) error {
	stars := state.Telemetry.StarsEarned()

	// Without a stored comparison the attempt counts as a non-improvement.
	previous := shared.MaxStars
	if state.Star != nil {
		previous = state.Star.Previous
	} else if stars != nil {
		previous = shared.ClampStars(*stars)
	}

	amount := progression.CalculateCoinReward(progression.RewardInput{
		GameID:        state.Input.GameID,
		Level:         state.Level,
		StarsEarned:   stars,
		PreviousStars: previous,
		Score:         state.Telemetry.ScoreValue(),
	})
	if amount <= 0 {
		return nil
	}

	res, err := wallet.Apply(ctx, s.deps.Ledger, wallet.DeltaRequest{
		UserID:    state.Input.UserID,
		Delta:     int64(amount),
		ActionKey: wallet.ActionGameReward,
		RefID:     state.Record.ID,
		Metadata: map[string]any{
			"game_id": state.Input.GameID,
			"level":   state.Level,
			"stars":   *stars,
		},
		IdempotencyKey: wallet.GameRewardKey(state.Input.SubmissionKey),
	})
	if err != nil {
		return fmt.Errorf("grant reward: %w", err)
	}

	if res.Applied {
		state.RewardCoins = int64(amount)
		state.RewardBalance = res.NewBalance
	}
	return nil
}

// stepMission completes the first open mission for the game and reads
// today's completed count.
func (s *SessionSubmissionSaga) stepMission(ctx context.Context, state *SubmissionState) error {
	slot, err := s.deps.Missions.Complete(ctx,
		state.Input.UserID, state.Input.GameID, state.Day,
		state.Input.SubmissionKey, state.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("complete mission: %w", err)
	}
	state.Mission = slot

	count, err := s.deps.Missions.CountCompleted(ctx, state.Input.UserID, state.Day)
	if err != nil {
		return fmt.Errorf("count completed missions: %w", err)
	}
	state.CompletedMissions = count
	return nil
}

// stepCheckin performs today's checkin.
func (s *SessionSubmissionSaga) stepCheckin(ctx context.Context, state *SubmissionState) error {
	if s.deps.Checkin == nil {
		return nil
	}
	res, err := s.deps.Checkin.PerformCheckin(ctx, state.Input.UserID)
	if err != nil {
		return fmt.Errorf("checkin: %w", err)
	}
	state.Checkin = res
	return nil
}

// stepAllMissions pays the daily bonus once every mission is complete. The
// ledger key makes a second payment on the same day impossible.
func (s *SessionSubmissionSaga) stepAllMissions(ctx context.Context, state *SubmissionState) error {
	if state.Mission == nil || state.CompletedMissions != mission.DailyMissionCount {
		return nil
	}
	state.AllMissionsDone = true

	if s.config.AllMissionsBonus <= 0 {
		return nil
	}
	if !shared.FeatureEnabled(s.deps.Features, shared.FeatureAllMissionsBonus, state.Input.UserID) {
		return nil
	}

	day := timeutil.FormatDay(state.Day)
	res, err := wallet.Apply(ctx, s.deps.Ledger, wallet.DeltaRequest{
		UserID:         state.Input.UserID,
		Delta:          s.config.AllMissionsBonus,
		ActionKey:      wallet.ActionAllMissionsBonus,
		RefID:          day,
		Metadata:       map[string]any{"date": day},
		IdempotencyKey: wallet.AllMissionsKey(state.Input.UserID, day),
	})
	if err != nil {
		return fmt.Errorf("grant all missions bonus: %w", err)
	}

	if res.Applied {
		state.AllMissionsBonus = s.config.AllMissionsBonus
		state.BonusBalance = res.NewBalance
	}
	return nil
}

// stepPublishEvents announces what changed. Replays of a recorded
// submission only announce money that actually moved.
func (s *SessionSubmissionSaga) stepPublishEvents(log *logger.Logger, state *SubmissionState) {
	in := state.Input
	var events []shared.Event

	if !state.Duplicate {
		events = append(events, shared.NewSessionRecordedEvent(in.UserID, state.Record.ID, in.GameID, state.Level, state.IsReplay))
	}
	if state.Star != nil && state.Star.Updated {
		events = append(events, shared.NewStarImprovedEvent(in.UserID, in.GameID, state.Level, state.Star.Previous, state.Star.Star))
	}
	if state.RewardCoins > 0 {
		events = append(events, shared.NewCoinsGrantedEvent(in.UserID, string(wallet.ActionGameReward), state.RewardCoins, state.RewardBalance))
	}
	if state.Mission != nil && !state.Duplicate {
		events = append(events, shared.NewMissionCompletedEvent(in.UserID, in.GameID, state.Mission.SlotIndex, state.CompletedMissions))
	}
	if state.AllMissionsBonus > 0 {
		events = append(events,
			shared.NewAllMissionsCompletedEvent(in.UserID, timeutil.FormatDay(state.Day), state.AllMissionsBonus),
			shared.NewCoinsGrantedEvent(in.UserID, string(wallet.ActionAllMissionsBonus), state.AllMissionsBonus, state.BonusBalance),
		)
	}

	for _, e := range events {
		if err := s.deps.Events.Publish(e); err != nil {
			log.Warn("publish failed", logger.String("event_type", string(e.EventType())), logger.Err(err))
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *SessionSubmissionSaga) bestEffort(log *logger.Logger, state *SubmissionState, err error) {
	state.fail(state.CurrentStep, err)
	s.deps.Metrics.RecordStepFailure(string(state.CurrentStep))
	log.Warn("best-effort step failed", logger.Step(string(state.CurrentStep)), logger.Err(err))
}

func (s *SessionSubmissionSaga) wrapError(state *SubmissionState, err error) error {
	state.FailedStep = state.CurrentStep
	state.Error = err

	if state.CurrentStep != StepValidate {
		s.deps.Metrics.RecordCriticalFailure(string(state.CurrentStep))
		s.log.Error("session submission aborted",
			logger.Step(string(state.CurrentStep)),
			logger.UserID(state.Input.UserID),
			logger.GameID(state.Input.GameID),
			logger.Err(err),
		)
	}

	return &SubmissionError{
		Step:   state.FailedStep,
		UserID: state.Input.UserID,
		GameID: state.Input.GameID,
		Cause:  err,
	}
}

func (s *SessionSubmissionSaga) buildResult(state *SubmissionState) *SubmissionResult {
	res := &SubmissionResult{
		SessionID:            state.Record.ID,
		Level:                state.Level,
		NewStats:             map[string]int{},
		StatChanges:          map[string]int{},
		IsReplay:             state.IsReplay,
		LearningRate:         state.LearningRate,
		StarInfo:             state.Star,
		EarnedCoins:          state.RewardCoins,
		CheckinResult:        state.Checkin,
		MissionResult:        mission.ResultOf(state.Mission),
		DailyPlayedCount:     state.CompletedMissions,
		AllMissionsCompleted: state.AllMissionsDone,
		AllMissionsBonus:     state.AllMissionsBonus,
		AlreadyProcessed:     state.Duplicate,
	}

	if state.Update != nil {
		for d, v := range state.Update.NewStats {
			res.NewStats["global_"+string(d)] = v
		}
		for d, v := range state.Update.Changes {
			res.StatChanges["stat_"+string(d)] = v
		}
	}
	if state.Checkin != nil {
		res.EarnedCoins += state.Checkin.CoinsEarned
	}
	for step := range state.FailedSteps {
		res.FailedSteps = append(res.FailedSteps, string(step))
	}

	return res
}
