package query

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
	"github.com/DeclineZ/brain-train-sub002/pkg/metrics"
	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CHECKIN STATUS QUERY
// Streak summary plus the current Monday-to-Sunday week, as shown on the
// home screen. The result is cached per user and day; checkins invalidate it.
// ══════════════════════════════════════════════════════════════════════════════

// DaysPerWeek is the length of the weekly progress strip.
const DaysPerWeek = 7

// GetCheckinStatusQuery requests the streak status of a user.
type GetCheckinStatusQuery struct {
	UserID string
}

// CheckinStatusDTO is the status returned to clients.
type CheckinStatusDTO struct {
	CheckedInToday  bool              `json:"checked_in_today"`
	CurrentStreak   int               `json:"current_streak"`
	LongestStreak   int               `json:"longest_streak"`
	TotalCheckins   int               `json:"total_checkins"`
	LastCheckinDate *string           `json:"last_checkin_date"`
	WeeklyProgress  WeeklyProgressDTO `json:"weekly_progress"`
}

// WeeklyProgressDTO summarizes the current week.
type WeeklyProgressDTO struct {
	DaysCheckedIn int          `json:"days_checked_in"`
	TotalDays     int          `json:"total_days"`
	WeekDays      []WeekDayDTO `json:"week_days"`
}

// WeekDayDTO is one day of the week strip.
type WeekDayDTO struct {
	DayName   string `json:"day_name"`
	Date      string `json:"date"`
	CheckedIn bool   `json:"checked_in"`
	IsToday   bool   `json:"is_today"`
}

// GetCheckinStatusHandler handles GetCheckinStatusQuery.
type GetCheckinStatusHandler struct {
	checkins streak.Repository
	cache    Cache
	ttl      time.Duration
	clock    timeutil.Clock
	metrics  *metrics.Manager
	log      *logger.Logger
}

// NewGetCheckinStatusHandler creates a new handler. cache may be nil.
func NewGetCheckinStatusHandler(
	checkins streak.Repository,
	cache Cache,
	ttl time.Duration,
	clock timeutil.Clock,
	m *metrics.Manager,
	log *logger.Logger,
) *GetCheckinStatusHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetCheckinStatusHandler{
		checkins: checkins,
		cache:    cache,
		ttl:      ttl,
		clock:    clock,
		metrics:  m,
		log:      log.With(logger.Component("checkin_status")),
	}
}

// Handle executes the query.
func (h *GetCheckinStatusHandler) Handle(ctx context.Context, q GetCheckinStatusQuery) (*CheckinStatusDTO, error) {
	uid, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	userID := uid.String()

	today := timeutil.Today(h.clock)
	key := UserCacheKey(userID, "checkin_status", timeutil.FormatDay(today))

	if h.cache != nil {
		var cached CheckinStatusDTO
		hit, err := h.cache.Get(ctx, key, &cached)
		if err != nil {
			h.log.Warn("cache read failed", logger.UserID(userID), logger.Err(err))
		}
		h.metrics.RecordCacheLookup("checkin_status", hit)
		if hit {
			return &cached, nil
		}
	}

	summary, err := h.checkins.GetSummary(ctx, userID)
	if err != nil {
		return nil, shared.PersistenceError("streak", "GetSummary", err)
	}

	weekStart := timeutil.StartOfWeek(today)
	weekEnd := weekStart.AddDate(0, 0, DaysPerWeek-1)
	days, err := h.checkins.ListDays(ctx, userID, weekStart, weekEnd)
	if err != nil {
		return nil, shared.PersistenceError("streak", "ListDays", err)
	}

	dto := buildCheckinStatus(summary, days, today)

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, dto, h.ttl); err != nil {
			h.log.Warn("cache write failed", logger.UserID(userID), logger.Err(err))
		}
	}

	return dto, nil
}

func buildCheckinStatus(summary streak.Summary, days []time.Time, today time.Time) *CheckinStatusDTO {
	checked := dayset(days)
	weekStart := timeutil.StartOfWeek(today)

	week := make([]WeekDayDTO, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		d := weekStart.AddDate(0, 0, i)
		date := timeutil.FormatDay(d)
		week = append(week, WeekDayDTO{
			DayName:   timeutil.WeekdayNameTh(d.Weekday()),
			Date:      date,
			CheckedIn: checked[date],
			IsToday:   d.Equal(today),
		})
	}

	dto := &CheckinStatusDTO{
		CheckedInToday: summary.CheckedInOn(today),
		CurrentStreak:  summary.EffectiveStreak(today),
		LongestStreak:  summary.LongestStreak,
		TotalCheckins:  summary.TotalCheckins,
		WeeklyProgress: WeeklyProgressDTO{
			DaysCheckedIn: lo.CountBy(week, func(d WeekDayDTO) bool { return d.CheckedIn }),
			TotalDays:     DaysPerWeek,
			WeekDays:      week,
		},
	}
	if summary.LastCheckinDate != nil {
		last := timeutil.FormatDay(*summary.LastCheckinDate)
		dto.LastCheckinDate = &last
	}
	return dto
}

func dayset(days []time.Time) map[string]bool {
	return lo.SliceToMap(days, func(d time.Time) (string, bool) {
		return timeutil.FormatDay(d), true
	})
}
