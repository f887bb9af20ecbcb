package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOf_UsesProductTimezone(t *testing.T) {
	// 18:30 UTC on Jan 31 is already Feb 1 in Bangkok.
	instant := time.Date(2026, time.January, 31, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, Date(2026, time.February, 1), DayOf(instant))
	assert.Equal(t, "2026-02-01", FormatDay(Today(FixedClock{T: instant})))
}

func TestDaysBetween(t *testing.T) {
	a := Date(2026, time.February, 27)
	b := Date(2026, time.March, 2)
	assert.Equal(t, 3, DaysBetween(a, b))
	assert.Equal(t, -3, DaysBetween(b, a))
	assert.True(t, IsConsecutiveDay(Date(2025, time.December, 31), Date(2026, time.January, 1)))
	assert.False(t, IsConsecutiveDay(a, a))
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, Date(2026, time.October, 18), day)

	_, err = ParseDay("18/10/2026")
	assert.Error(t, err)
}

func TestStartOfWeek(t *testing.T) {
	// 2026-10-18 is a Sunday.
	assert.Equal(t, Date(2026, time.October, 12), StartOfWeek(Date(2026, time.October, 18)))
	assert.Equal(t, Date(2026, time.October, 12), StartOfWeek(Date(2026, time.October, 12)))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2028, time.February))
	assert.Equal(t, 28, DaysInMonth(2026, time.February))
	assert.Equal(t, 31, DaysInMonth(2026, time.December))
}

func TestThaiNames(t *testing.T) {
	assert.Equal(t, "มกราคม", MonthNameTh(time.January))
	assert.Equal(t, "ธันวาคม", MonthNameTh(time.December))
	assert.Equal(t, "", MonthNameTh(0))
	assert.Equal(t, "อา", WeekdayNameTh(time.Sunday))
}
