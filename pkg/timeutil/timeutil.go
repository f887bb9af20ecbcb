// Package timeutil provides calendar-day helpers in the product timezone.
// Calendar days are represented as time.Time values at 00:00 UTC carrying
// the local year/month/day, so they round-trip through SQL DATE columns
// without shifting.
package timeutil

import (
	"sync"
	"time"
)

// DefaultTimezone is the product's home timezone (UTC+7, no DST).
const DefaultTimezone = "Asia/Bangkok"

var (
	mu       sync.RWMutex
	location = time.FixedZone(DefaultTimezone, 7*60*60)
)

// SetLocation changes the timezone used to decide "today".
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	mu.Lock()
	location = loc
	mu.Unlock()
}

// Location returns the configured product timezone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// LoadLocation resolves a timezone name, falling back to the fixed UTC+7 zone.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(DefaultTimezone, 7*60*60)
	}
	return loc
}

// Clock abstracts the current time for testability.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.T }

// Common date formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
)

// Date builds a calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf returns the calendar day of t in the product timezone.
func DayOf(t time.Time) time.Time {
	local := t.In(Location())
	return Date(local.Year(), local.Month(), local.Day())
}

// Today returns the current calendar day according to clock.
func Today(clock Clock) time.Time {
	return DayOf(clock.Now())
}

// FormatDay formats a calendar day as YYYY-MM-DD.
func FormatDay(day time.Time) string {
	return day.Format(FormatDate)
}

// ParseDay parses a YYYY-MM-DD string into a calendar day.
func ParseDay(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}

// DaysBetween returns the signed number of days from a to b.
func DaysBetween(a, b time.Time) int {
	a = Date(a.Year(), a.Month(), a.Day())
	b = Date(b.Year(), b.Month(), b.Day())
	return int(b.Sub(a).Hours() / 24)
}

// IsConsecutiveDay checks if next is the day after prev.
func IsConsecutiveDay(prev, next time.Time) bool {
	return DaysBetween(prev, next) == 1
}

// StartOfWeek returns the Monday of day's week.
func StartOfWeek(day time.Time) time.Time {
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

var thaiMonths = [...]string{
	"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
	"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
}

var thaiWeekdays = [...]string{"อา", "จ", "อ", "พ", "พฤ", "ศ", "ส"}

// MonthNameTh returns the Thai name for a month.
func MonthNameTh(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return thaiMonths[m-1]
}

// WeekdayNameTh returns the short Thai name for a weekday.
func WeekdayNameTh(d time.Weekday) string {
	return thaiWeekdays[d]
}
