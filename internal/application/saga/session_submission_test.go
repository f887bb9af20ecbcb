package saga

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/game"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/mission"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/progression"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

const testUser = "6f1c2a9e-4b7d-4c1e-9a53-0d2b8e7f1a44"

type fixture struct {
	sessions *fakeSessions
	stars    *fakeStars
	ledger   *fakeLedger
	missions *fakeMissions
	checkin  *fakeCheckin
	events   *recordingPublisher
	features shared.FeatureGate
	config   SubmissionConfig
}

func newFixture() *fixture {
	return &fixture{
		sessions: newFakeSessions(),
		stars:    &fakeStars{stars: map[progression.StarKey]int{}},
		ledger:   newFakeLedger(),
		missions: &fakeMissions{},
		checkin: &fakeCheckin{result: &streak.CheckinResult{
			Success:     true,
			StreakCount: 2,
			CoinsEarned: 10,
		}},
		events: &recordingPublisher{},
		config: DefaultSubmissionConfig(),
	}
}

func (f *fixture) saga() *SessionSubmissionSaga {
	return NewSessionSubmissionSaga(SubmissionDeps{
		Sessions: f.sessions,
		Stars:    f.stars,
		Ledger:   f.ledger,
		Missions: f.missions,
		Checkin:  f.checkin,
		Events:   f.events,
		Features: f.features,
		Clock:    timeutil.FixedClock{T: time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)},
	}, f.config)
}

func submit(t *testing.T, f *fixture, gameID, payload string) (*SubmissionResult, error) {
	t.Helper()
	return f.saga().Execute(context.Background(), SubmissionInput{
		UserID:  testUser,
		GameID:  gameID,
		RawData: []byte(payload),
	})
}

func TestSubmission_FirstPlay(t *testing.T) {
	f := newFixture()

	res, err := submit(t, f, game.CardMatch, `{"levelPlayed":1,"stars":3}`)
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, 1, res.Level)
	assert.False(t, res.IsReplay)
	assert.Equal(t, 0.1, res.LearningRate)
	assert.Equal(t, 100, res.NewStats["global_memory"])
	assert.Equal(t, 100, res.StatChanges["stat_memory"])
	assert.Equal(t, 50, res.NewStats["global_planning"])
	assert.NotContains(t, res.NewStats, "global_emotion")

	require.NotNil(t, res.StarInfo)
	assert.True(t, res.StarInfo.Updated)
	assert.Equal(t, 3, res.StarInfo.Star)

	// 20 reward + 10 checkin bonus
	assert.Equal(t, int64(30), res.EarnedCoins)
	assert.Equal(t, int64(20), f.ledger.balances[testUser])
	assert.Nil(t, res.MissionResult)
	assert.Empty(t, res.FailedSteps)
	assert.Equal(t, 1, f.checkin.calls)

	assert.Equal(t, []shared.EventType{
		shared.EventSessionRecorded,
		shared.EventStarImproved,
		shared.EventCoinsGranted,
	}, f.events.types())
}

func TestSubmission_ReplayUsesLowerRate(t *testing.T) {
	f := newFixture()

	_, err := submit(t, f, game.CardMatch, `{"levelPlayed":1,"stars":3}`)
	require.NoError(t, err)

	res, err := submit(t, f, game.CardMatch, `{"levelPlayed":1,"stars":3,"wrongFlips":4}`)
	require.NoError(t, err)

	assert.True(t, res.IsReplay)
	assert.Equal(t, 0.05, res.LearningRate)
	// memory 100 -> target 80 at 0.05
	assert.Equal(t, 99, res.NewStats["global_memory"])
	assert.Equal(t, -1, res.StatChanges["stat_memory"])
	assert.False(t, res.StarInfo.Updated)
	// 20 * 1.0 * 0.2 + checkin
	assert.Equal(t, int64(14), res.EarnedCoins)
}

func TestSubmission_DuplicateIsIdempotent(t *testing.T) {
	f := newFixture()
	payload := `{"levelPlayed":2,"stars":2}`

	first, err := submit(t, f, game.CardMatch, payload)
	require.NoError(t, err)
	profile := f.sessions.profiles[testUser]

	second, err := submit(t, f, game.CardMatch, payload)
	require.NoError(t, err)

	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.IsReplay, second.IsReplay)
	assert.Empty(t, second.NewStats)
	assert.Empty(t, second.StatChanges)
	assert.Equal(t, profile, f.sessions.profiles[testUser])
	assert.Len(t, f.sessions.records, 1)

	// reward key already used, only the checkin bonus is reported
	assert.Equal(t, int64(15), f.ledger.balances[testUser])
	assert.Equal(t, int64(10), second.EarnedCoins)
}

func TestSubmission_CriticalFailureAborts(t *testing.T) {
	f := newFixture()
	f.sessions.err = errBoom

	res, err := submit(t, f, game.CardMatch, `{"levelPlayed":1,"stars":3}`)
	require.Error(t, err)
	assert.Nil(t, res)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, StepRecord, subErr.Step)
	assert.Equal(t, testUser, subErr.UserID)
	assert.True(t, shared.IsPersistence(err))
	assert.ErrorIs(t, err, errBoom)

	assert.Empty(t, f.ledger.requests)
	assert.Zero(t, f.checkin.calls)
	assert.Empty(t, f.events.events)
}

func TestSubmission_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		userID  string
		gameID  string
		payload string
		check   func(error) bool
	}{
		{"missing user", "", game.CardMatch, `{}`, shared.IsUnauthorized},
		{"bad game id", testUser, "cardmatch", `{}`, shared.IsValidation},
		{"unknown game", testUser, "game-99-unknown", `{}`, shared.IsValidation},
		{"empty payload", testUser, game.CardMatch, ``, shared.IsValidation},
		{"malformed payload", testUser, game.CardMatch, `{"levelPlayed":`, shared.IsValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.saga().Execute(context.Background(), SubmissionInput{
				UserID:  tc.userID,
				GameID:  tc.gameID,
				RawData: []byte(tc.payload),
			})
			require.Error(t, err)
			assert.True(t, tc.check(err), err.Error())
			assert.Empty(t, f.sessions.records)
		})
	}
}

func TestSubmission_BestEffortFailuresAreSwallowed(t *testing.T) {
	f := newFixture()
	f.stars.err = errBoom
	f.missions.err = errBoom
	f.checkin.err = errBoom

	res, err := submit(t, f, game.CardMatch, `{"levelPlayed":1,"stars":3}`)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		string(StepStars),
		string(StepMission),
		string(StepCheckin),
	}, res.FailedSteps)
	assert.Nil(t, res.StarInfo)
	assert.Nil(t, res.CheckinResult)

	// without a stored star the attempt is paid as a non-improvement
	assert.Equal(t, int64(4), res.EarnedCoins)
	assert.Len(t, f.sessions.records, 1)
}

func TestSubmission_LedgerFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	f.ledger.err = errBoom

	res, err := submit(t, f, game.CardMatch, `{"levelPlayed":1,"stars":3}`)
	require.NoError(t, err)

	assert.Contains(t, res.FailedSteps, string(StepReward))
	assert.Equal(t, int64(10), res.EarnedCoins)
}

func TestSubmission_TutorialLevelSkipsProgression(t *testing.T) {
	f := newFixture()

	res, err := submit(t, f, game.CardMatch, `{"levelPlayed":0,"stars":3}`)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Level)
	assert.Empty(t, res.NewStats)
	assert.Nil(t, res.StarInfo)
	assert.Empty(t, f.stars.stars)
	assert.Zero(t, f.ledger.applied(wallet.ActionGameReward))
	assert.Empty(t, f.sessions.profiles)
	assert.Len(t, f.sessions.records, 1)
	assert.Equal(t, 1, f.checkin.calls)
}

func missionSlots() []mission.Slot {
	return []mission.Slot{
		{SlotIndex: 0, GameID: game.CardMatch, Label: game.Title(game.CardMatch)},
		{SlotIndex: 1, GameID: game.TubeSort, Label: game.Title(game.TubeSort)},
		{SlotIndex: 2, GameID: game.Miner, Label: game.Title(game.Miner)},
	}
}

func TestSubmission_CompletesMission(t *testing.T) {
	f := newFixture()
	f.missions.slots = missionSlots()

	res, err := submit(t, f, game.TubeSort, `{"levelPlayed":3,"stars":1}`)
	require.NoError(t, err)

	require.NotNil(t, res.MissionResult)
	assert.Equal(t, &mission.Result{Completed: true, Label: game.Title(game.TubeSort), SlotIndex: 1}, res.MissionResult)
	assert.Equal(t, 1, res.DailyPlayedCount)
	assert.False(t, res.AllMissionsCompleted)
	assert.Zero(t, f.ledger.applied(wallet.ActionAllMissionsBonus))
}

func TestSubmission_AllMissionsBonus(t *testing.T) {
	f := newFixture()
	f.missions.slots = missionSlots()

	for _, g := range []string{game.CardMatch, game.TubeSort} {
		_, err := submit(t, f, g, `{"levelPlayed":1,"stars":3}`)
		require.NoError(t, err)
	}

	res, err := submit(t, f, game.Miner, `{"levelPlayed":1,"stars":3}`)
	require.NoError(t, err)

	assert.Equal(t, 3, res.DailyPlayedCount)
	assert.True(t, res.AllMissionsCompleted)
	assert.Equal(t, int64(50), res.AllMissionsBonus)
	assert.Contains(t, f.events.types(), shared.EventAllMissionsCompleted)

	// another session the same day cannot pay again
	again, err := submit(t, f, game.Miner, `{"levelPlayed":2,"stars":3}`)
	require.NoError(t, err)
	assert.False(t, again.AllMissionsCompleted)
	assert.Zero(t, again.AllMissionsBonus)
	assert.Equal(t, 1, f.ledger.applied(wallet.ActionAllMissionsBonus))
}

func TestSubmission_AllMissionsBonusRespectsFeatureFlag(t *testing.T) {
	f := newFixture()
	f.features = denyAll{}
	f.missions.slots = missionSlots()
	f.missions.slots[0].Completed = true
	f.missions.slots[1].Completed = true

	res, err := submit(t, f, game.Miner, `{"levelPlayed":1,"stars":3}`)
	require.NoError(t, err)

	assert.True(t, res.AllMissionsCompleted)
	assert.Zero(t, res.AllMissionsBonus)
	assert.Zero(t, f.ledger.applied(wallet.ActionAllMissionsBonus))
}

func TestSubmission_ScoreDrivenReward(t *testing.T) {
	f := newFixture()

	res, err := submit(t, f, game.SensorLock, `{"levelPlayed":1,"stars":0,"score":4600}`)
	require.NoError(t, err)

	// floor(4600/1500) + checkin
	assert.Equal(t, int64(13), res.EarnedCoins)
}

func TestSubmission_ExplicitKeyDeduplicatesDifferentPayloads(t *testing.T) {
	f := newFixture()
	s := f.saga()
	in := SubmissionInput{UserID: testUser, GameID: game.CardMatch, SubmissionKey: "client-key-1"}

	in.RawData = []byte(`{"levelPlayed":1,"stars":1}`)
	_, err := s.Execute(context.Background(), in)
	require.NoError(t, err)

	in.RawData = []byte(`{"levelPlayed":1,"stars":3}`)
	res, err := s.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, res.AlreadyProcessed)
	assert.Len(t, f.sessions.records, 1)

	key := progression.StarKey{UserID: testUser, GameID: game.CardMatch, Level: 1}
	assert.Equal(t, 1, f.stars.stars[key])
	assert.Equal(t, int64(10), f.ledger.balances[testUser])
	assert.Equal(t, int64(10), res.EarnedCoins)
}

func TestSubmission_ReusedKeyForAnotherGameIsRejected(t *testing.T) {
	f := newFixture()
	f.missions.slots = []mission.Slot{{UserID: testUser, GameID: game.TubeSort, SlotIndex: 1}}
	s := f.saga()

	_, err := s.Execute(context.Background(), SubmissionInput{
		UserID:        testUser,
		GameID:        game.CardMatch,
		SubmissionKey: "client-key-2",
		RawData:       []byte(`{"levelPlayed":1,"stars":1}`),
	})
	require.NoError(t, err)
	balance := f.ledger.balances[testUser]

	res, err := s.Execute(context.Background(), SubmissionInput{
		UserID:        testUser,
		GameID:        game.TubeSort,
		SubmissionKey: "client-key-2",
		RawData:       []byte(`{"levelPlayed":1,"stars":3}`),
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, shared.IsValidation(err), err.Error())

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, StepRecord, subErr.Step)

	tube := progression.StarKey{UserID: testUser, GameID: game.TubeSort, Level: 1}
	assert.NotContains(t, f.stars.stars, tube)
	assert.False(t, f.missions.slots[0].Completed)
	assert.Equal(t, balance, f.ledger.balances[testUser])
	assert.Len(t, f.sessions.records, 1)
}

func TestSubmission_KeyOwnedByAnotherUserIsRejected(t *testing.T) {
	f := newFixture()
	s := f.saga()
	other := "0b7e4f8a-2c31-4d6e-8f90-1a2b3c4d5e6f"

	_, err := s.Execute(context.Background(), SubmissionInput{
		UserID:        other,
		GameID:        game.CardMatch,
		SubmissionKey: "shared-key",
		RawData:       []byte(`{"levelPlayed":1,"stars":2}`),
	})
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), SubmissionInput{
		UserID:        testUser,
		GameID:        game.CardMatch,
		SubmissionKey: "shared-key",
		RawData:       []byte(`{"levelPlayed":1,"stars":2}`),
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err), err.Error())
	assert.Zero(t, f.ledger.balances[testUser])
}
