package query

import (
	"context"
	"time"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CHECKIN CALENDAR QUERY
// One month of checkin days for the calendar popup.
// ══════════════════════════════════════════════════════════════════════════════

// GetCheckinCalendarQuery requests a month. Zero Year or Month means the
// current one.
type GetCheckinCalendarQuery struct {
	UserID string
	Year   int `validate:"omitempty,gte=2000,lte=2100"`
	Month  int `validate:"omitempty,gte=1,lte=12"`
}

// Validate checks the requested month.
func (q GetCheckinCalendarQuery) Validate() error {
	if err := validatorInstance().Struct(q); err != nil {
		return shared.WrapError("streak", "GetCheckinCalendar", shared.ErrValueOutOfRange, "invalid year or month", err)
	}
	return nil
}

// CheckinCalendarDTO is one rendered month.
type CheckinCalendarDTO struct {
	Year      int              `json:"year"`
	Month     int              `json:"month"`
	MonthName string           `json:"month_name"`
	Days      []CalendarDayDTO `json:"days"`
}

// CalendarDayDTO is one day cell.
type CalendarDayDTO struct {
	Date      string `json:"date"`
	CheckedIn bool   `json:"checked_in"`
	IsToday   bool   `json:"is_today"`
	IsFuture  bool   `json:"is_future"`
}

// GetCheckinCalendarHandler handles GetCheckinCalendarQuery.
type GetCheckinCalendarHandler struct {
	checkins streak.Repository
	clock    timeutil.Clock
}

// NewGetCheckinCalendarHandler creates a new handler.
func NewGetCheckinCalendarHandler(checkins streak.Repository, clock timeutil.Clock) *GetCheckinCalendarHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetCheckinCalendarHandler{checkins: checkins, clock: clock}
}

// Handle executes the query.
func (h *GetCheckinCalendarHandler) Handle(ctx context.Context, q GetCheckinCalendarQuery) (*CheckinCalendarDTO, error) {
	uid, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	today := timeutil.Today(h.clock)
	if q.Year == 0 {
		q.Year = today.Year()
	}
	if q.Month == 0 {
		q.Month = int(today.Month())
	}

	month := time.Month(q.Month)
	first := timeutil.Date(q.Year, month, 1)
	n := timeutil.DaysInMonth(q.Year, month)
	last := timeutil.Date(q.Year, month, n)

	days, err := h.checkins.ListDays(ctx, uid.String(), first, last)
	if err != nil {
		return nil, shared.PersistenceError("streak", "ListDays", err)
	}
	checked := dayset(days)

	dto := &CheckinCalendarDTO{
		Year:      q.Year,
		Month:     q.Month,
		MonthName: timeutil.MonthNameTh(month),
		Days:      make([]CalendarDayDTO, 0, n),
	}
	for d := 1; d <= n; d++ {
		day := timeutil.Date(q.Year, month, d)
		date := timeutil.FormatDay(day)
		dto.Days = append(dto.Days, CalendarDayDTO{
			Date:      date,
			CheckedIn: checked[date],
			IsToday:   day.Equal(today),
			IsFuture:  day.After(today),
		})
	}

	return dto, nil
}
