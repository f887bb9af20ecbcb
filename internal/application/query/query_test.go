package query

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/game"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/mission"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/progression"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

const userID = "0b6f3c1e-8d2a-4f7b-9c3e-5a1d2e4f6b80"

// Wednesday 2026-05-06, midday in Bangkok.
var clock = timeutil.FixedClock{T: time.Date(2026, 5, 6, 5, 0, 0, 0, time.UTC)}

func day(d int) time.Time { return timeutil.Date(2026, time.May, d) }

// ── fakes ───────────────────────────────────────────────────────────────────

type fakeCheckins struct {
	summary     streak.Summary
	days        []time.Time
	summaryHits int
}

func (f *fakeCheckins) RecordCheckin(context.Context, string, time.Time) (streak.Summary, bool, error) {
	return f.summary, false, nil
}

func (f *fakeCheckins) GetSummary(context.Context, string) (streak.Summary, error) {
	f.summaryHits++
	return f.summary, nil
}

func (f *fakeCheckins) IsCheckedIn(_ context.Context, _ string, d time.Time) (bool, error) {
	return f.summary.CheckedInOn(d), nil
}

func (f *fakeCheckins) ListDays(_ context.Context, _ string, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range f.days {
		if !d.Before(from) && !d.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

type mapCache struct {
	items map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = raw
	return nil
}

type fakeBadges struct {
	unlocked map[string]time.Time
}

func (f *fakeBadges) Unlock(context.Context, string, []string) ([]string, error) { return nil, nil }

func (f *fakeBadges) ListUnlocked(context.Context, string) (map[string]time.Time, error) {
	return f.unlocked, nil
}

type fakeMissionRepo struct {
	slots   []mission.Slot
	inserts int
}

func (f *fakeMissionRepo) ListForDay(context.Context, string, time.Time) ([]mission.Slot, error) {
	return append([]mission.Slot(nil), f.slots...), nil
}

func (f *fakeMissionRepo) InsertSlots(_ context.Context, slots []mission.Slot) error {
	f.inserts++
	taken := map[int]bool{}
	for _, s := range f.slots {
		taken[s.SlotIndex] = true
	}
	for _, s := range slots {
		if !taken[s.SlotIndex] {
			f.slots = append(f.slots, s)
		}
	}
	return nil
}

func (f *fakeMissionRepo) Complete(context.Context, string, string, time.Time, string, time.Time) (*mission.Slot, error) {
	return nil, nil
}

func (f *fakeMissionRepo) CountCompleted(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

type offGate struct{}

func (offGate) EnabledFor(string, string) bool { return false }

// ── checkin status ──────────────────────────────────────────────────────────

func TestCheckinStatus_WeeklyProgress(t *testing.T) {
	last := day(5)
	repo := &fakeCheckins{
		summary: streak.Summary{CurrentStreak: 3, LongestStreak: 5, TotalCheckins: 10, LastCheckinDate: &last},
		days:    []time.Time{day(1), day(4), day(5)},
	}
	h := NewGetCheckinStatusHandler(repo, nil, time.Minute, clock, nil, nil)

	dto, err := h.Handle(context.Background(), GetCheckinStatusQuery{UserID: userID})
	require.NoError(t, err)

	assert.False(t, dto.CheckedInToday)
	assert.Equal(t, 3, dto.CurrentStreak)
	assert.Equal(t, 5, dto.LongestStreak)
	assert.Equal(t, 10, dto.TotalCheckins)
	require.NotNil(t, dto.LastCheckinDate)
	assert.Equal(t, "2026-05-05", *dto.LastCheckinDate)

	wp := dto.WeeklyProgress
	assert.Equal(t, 2, wp.DaysCheckedIn)
	assert.Equal(t, 7, wp.TotalDays)
	require.Len(t, wp.WeekDays, 7)
	assert.Equal(t, "2026-05-04", wp.WeekDays[0].Date)
	assert.Equal(t, "จ", wp.WeekDays[0].DayName)
	assert.True(t, wp.WeekDays[0].CheckedIn)
	assert.True(t, wp.WeekDays[2].IsToday)
	assert.False(t, wp.WeekDays[2].CheckedIn)
	assert.Equal(t, "2026-05-10", wp.WeekDays[6].Date)
}

func TestCheckinStatus_BrokenStreakReportsZero(t *testing.T) {
	last := day(3)
	repo := &fakeCheckins{summary: streak.Summary{CurrentStreak: 8, LongestStreak: 8, TotalCheckins: 8, LastCheckinDate: &last}}
	h := NewGetCheckinStatusHandler(repo, nil, time.Minute, clock, nil, nil)

	dto, err := h.Handle(context.Background(), GetCheckinStatusQuery{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, 0, dto.CurrentStreak)
	assert.Equal(t, 8, dto.LongestStreak)
}

func TestCheckinStatus_NeverCheckedIn(t *testing.T) {
	h := NewGetCheckinStatusHandler(&fakeCheckins{}, nil, time.Minute, clock, nil, nil)

	dto, err := h.Handle(context.Background(), GetCheckinStatusQuery{UserID: userID})
	require.NoError(t, err)
	assert.Nil(t, dto.LastCheckinDate)
	assert.Zero(t, dto.CurrentStreak)
	assert.Zero(t, dto.WeeklyProgress.DaysCheckedIn)
}

func TestCheckinStatus_UsesCache(t *testing.T) {
	repo := &fakeCheckins{}
	cache := &mapCache{items: map[string][]byte{}}
	h := NewGetCheckinStatusHandler(repo, cache, time.Minute, clock, nil, nil)

	_, err := h.Handle(context.Background(), GetCheckinStatusQuery{UserID: userID})
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), GetCheckinStatusQuery{UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.summaryHits)
	assert.Contains(t, cache.items, UserCacheKey(userID, "checkin_status", "2026-05-06"))
}

func TestCheckinStatus_RejectsBadUser(t *testing.T) {
	h := NewGetCheckinStatusHandler(&fakeCheckins{}, nil, time.Minute, clock, nil, nil)
	_, err := h.Handle(context.Background(), GetCheckinStatusQuery{UserID: "not-a-uuid"})
	assert.True(t, shared.IsUnauthorized(err))
}

// ── calendar ────────────────────────────────────────────────────────────────

func TestCheckinCalendar(t *testing.T) {
	repo := &fakeCheckins{days: []time.Time{day(1), day(6), timeutil.Date(2026, time.April, 30)}}
	h := NewGetCheckinCalendarHandler(repo, clock)

	dto, err := h.Handle(context.Background(), GetCheckinCalendarQuery{UserID: userID, Year: 2026, Month: 5})
	require.NoError(t, err)

	assert.Equal(t, "พฤษภาคม", dto.MonthName)
	require.Len(t, dto.Days, 31)
	assert.True(t, dto.Days[0].CheckedIn)
	assert.True(t, dto.Days[5].CheckedIn)
	assert.True(t, dto.Days[5].IsToday)
	assert.False(t, dto.Days[5].IsFuture)
	assert.True(t, dto.Days[6].IsFuture)
	assert.False(t, dto.Days[1].CheckedIn)
}

func TestCheckinCalendar_DefaultsToCurrentMonth(t *testing.T) {
	h := NewGetCheckinCalendarHandler(&fakeCheckins{}, clock)

	dto, err := h.Handle(context.Background(), GetCheckinCalendarQuery{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, 2026, dto.Year)
	assert.Equal(t, 5, dto.Month)
}

func TestCheckinCalendar_InvalidMonth(t *testing.T) {
	h := NewGetCheckinCalendarHandler(&fakeCheckins{}, clock)

	for _, m := range []int{-1, 13} {
		_, err := h.Handle(context.Background(), GetCheckinCalendarQuery{UserID: userID, Year: 2026, Month: m})
		assert.True(t, shared.IsValidation(err), "month %d", m)
	}
}

// ── badges ──────────────────────────────────────────────────────────────────

func TestBadges(t *testing.T) {
	at := day(2)
	h := NewGetBadgesHandler(&fakeBadges{unlocked: map[string]time.Time{"first_checkin": at}})

	dto, err := h.Handle(context.Background(), GetBadgesQuery{UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, len(streak.Catalog), dto.TotalCount)
	assert.Equal(t, 1, dto.UnlockedCount)
	assert.Equal(t, "first_checkin", dto.Badges[0].ID)
	assert.True(t, dto.Badges[0].Unlocked)
	assert.False(t, dto.Badges[1].Unlocked)
}

// ── missions ────────────────────────────────────────────────────────────────

func TestDailyMissions_GeneratesOnFirstRead(t *testing.T) {
	repo := &fakeMissionRepo{}
	h := NewGetDailyMissionsHandler(repo, nil, clock, nil)

	dto, err := h.Handle(context.Background(), GetDailyMissionsQuery{UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, "2026-05-06", dto.Date)
	assert.Len(t, dto.Missions, mission.DailyMissionCount)
	assert.Equal(t, 1, repo.inserts)
	assert.False(t, dto.AllCompleted)

	again, err := h.Handle(context.Background(), GetDailyMissionsQuery{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, dto.Missions, again.Missions)
	assert.Equal(t, 1, repo.inserts)
}

func TestDailyMissions_ReportsCompletion(t *testing.T) {
	repo := &fakeMissionRepo{slots: []mission.Slot{
		{SlotIndex: 0, GameID: game.CardMatch, Completed: true},
		{SlotIndex: 1, GameID: game.Miner, Completed: true},
		{SlotIndex: 2, GameID: game.TubeSort, Completed: true},
	}}
	h := NewGetDailyMissionsHandler(repo, nil, clock, nil)

	dto, err := h.Handle(context.Background(), GetDailyMissionsQuery{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, 3, dto.CompletedCount)
	assert.True(t, dto.AllCompleted)
	assert.Zero(t, repo.inserts)
}

func TestDailyMissions_AutoGenerateDisabled(t *testing.T) {
	repo := &fakeMissionRepo{}
	h := NewGetDailyMissionsHandler(repo, offGate{}, clock, nil)

	dto, err := h.Handle(context.Background(), GetDailyMissionsQuery{UserID: userID})
	require.NoError(t, err)
	assert.Empty(t, dto.Missions)
	assert.NotNil(t, dto.Missions)
	assert.Zero(t, repo.inserts)
}

// ── wallet, profile, stars ──────────────────────────────────────────────────

type fakeWallet struct {
	balance int64
	limit   int
}

func (f *fakeWallet) ApplyDelta(context.Context, wallet.DeltaRequest) (*wallet.DeltaResult, error) {
	return nil, nil
}

func (f *fakeWallet) Balance(context.Context, string) (int64, error) { return f.balance, nil }

func (f *fakeWallet) History(_ context.Context, _ string, limit int) ([]wallet.Transaction, error) {
	f.limit = limit
	return nil, nil
}

func TestWallet(t *testing.T) {
	w := &fakeWallet{balance: 120}
	h := NewGetWalletHandler(w, 20)

	dto, err := h.Handle(context.Background(), GetWalletQuery{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(120), dto.Balance)
	assert.NotNil(t, dto.Transactions)
	assert.Equal(t, 20, w.limit)

	_, err = h.Handle(context.Background(), GetWalletQuery{UserID: userID, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, shared.MaxPageSize, w.limit)
}

type fakeProfiles struct {
	profile *ability.Profile
}

func (f *fakeProfiles) FindByUser(context.Context, string) (*ability.Profile, error) {
	if f.profile == nil {
		return nil, shared.ErrNotFound
	}
	return f.profile, nil
}

func TestProfile(t *testing.T) {
	h := NewGetProfileHandler(&fakeProfiles{profile: &ability.Profile{
		UserID:    userID,
		Stats:     ability.Stats{Memory: ability.Int(61), Focus: ability.Int(80)},
		UpdatedAt: clock.T,
	}}, nil, time.Minute, nil, nil)

	dto, err := h.Handle(context.Background(), GetProfileQuery{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, 2, dto.Measured)
	assert.Equal(t, 61, *dto.Stats.Memory)
	assert.Nil(t, dto.Stats.Speed)
}

func TestProfile_Missing(t *testing.T) {
	h := NewGetProfileHandler(&fakeProfiles{}, nil, time.Minute, nil, nil)

	dto, err := h.Handle(context.Background(), GetProfileQuery{UserID: userID})
	require.NoError(t, err)
	assert.Zero(t, dto.Measured)
	assert.Nil(t, dto.UpdatedAt)
}

type fakeStarRepo struct {
	levels []progression.LevelStar
}

func (f *fakeStarRepo) Upsert(context.Context, progression.StarKey, int) (progression.StarResult, error) {
	return progression.StarResult{}, nil
}

func (f *fakeStarRepo) Get(context.Context, progression.StarKey) (int, error) { return 0, nil }

func (f *fakeStarRepo) ListByGame(context.Context, string, string) ([]progression.LevelStar, error) {
	return f.levels, nil
}

func TestGameStars(t *testing.T) {
	h := NewGetGameStarsHandler(&fakeStarRepo{levels: []progression.LevelStar{
		{Level: 1, Star: 3},
		{Level: 2, Star: 1},
	}})

	dto, err := h.Handle(context.Background(), GetGameStarsQuery{UserID: userID, GameID: game.CardMatch})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"level_1_stars": 3, "level_2_stars": 1}, dto.Stars)
	assert.Equal(t, 4, dto.TotalStars)
	assert.Equal(t, 2, dto.LevelsPlayed)

	_, err = h.Handle(context.Background(), GetGameStarsQuery{UserID: userID, GameID: "game-99-nope"})
	assert.True(t, shared.IsValidation(err))
}
