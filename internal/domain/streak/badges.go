package streak

import (
	"time"

	"github.com/samber/lo"
)

// Metric selects which counter a badge threshold is compared against.
type Metric string

const (
	MetricTotal  Metric = "TOTAL"
	MetricStreak Metric = "STREAK"
)

// Badge is one entry of the static catalog.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Metric      Metric `json:"metric"`
	Threshold   int    `json:"threshold"`
}

// Catalog is the single badge table used for evaluation and display.
var Catalog = []Badge{
	{ID: "first_checkin", Name: "การเริ่มต้น", Description: "เช็คอินครั้งแรก", Icon: "🌱", Metric: MetricTotal, Threshold: 1},
	{ID: "week_streak", Name: "สัปดาห์แห่งความมุ่งมั่น", Description: "เช็คอินติดต่อกัน 7 วัน", Icon: "🔥", Metric: MetricStreak, Threshold: 7},
	{ID: "month_streak", Name: "เดือนแห่งความมุ่งมั่น", Description: "เช็คอินติดต่อกัน 30 วัน", Icon: "💪", Metric: MetricStreak, Threshold: 30},
	{ID: "hundred_days", Name: "ระดับตำนาน", Description: "เช็คอินติดต่อกัน 100 วัน", Icon: "👑", Metric: MetricStreak, Threshold: 100},
	{ID: "fifty_total", Name: "ผู้ฝึกฝนตัวจริง", Description: "เช็คอินรวม 50 ครั้ง", Icon: "⭐", Metric: MetricTotal, Threshold: 50},
	{ID: "hundred_total", Name: "ยอดฝีมือ", Description: "เช็คอินรวม 100 ครั้ง", Icon: "🏆", Metric: MetricTotal, Threshold: 100},
}

// BadgeByID looks a badge up in the catalog.
func BadgeByID(id string) (Badge, bool) {
	return lo.Find(Catalog, func(b Badge) bool { return b.ID == id })
}

// IsEligible compares the badge threshold with the summary: TOTAL against
// total checkins, STREAK against the longest streak.
func (b Badge) IsEligible(s Summary) bool {
	switch b.Metric {
	case MetricTotal:
		return s.TotalCheckins >= b.Threshold
	case MetricStreak:
		return s.LongestStreak >= b.Threshold
	}
	return false
}

// Eligible returns the ids of every badge s qualifies for.
func Eligible(s Summary) []string {
	return lo.FilterMap(Catalog, func(b Badge, _ int) (string, bool) {
		return b.ID, b.IsEligible(s)
	})
}

// Badges resolves ids to catalog entries in catalog order.
func Badges(ids []string) []Badge {
	set := lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })
	return lo.Filter(Catalog, func(b Badge, _ int) bool {
		_, ok := set[b.ID]
		return ok
	})
}

// BadgeStatus is a catalog entry annotated with the user's unlock state.
type BadgeStatus struct {
	Badge
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Statuses annotates the full catalog with unlock times.
func Statuses(unlocked map[string]time.Time) []BadgeStatus {
	return lo.Map(Catalog, func(b Badge, _ int) BadgeStatus {
		st := BadgeStatus{Badge: b}
		if at, ok := unlocked[b.ID]; ok {
			at := at
			st.Unlocked = true
			st.UnlockedAt = &at
		}
		return st
	})
}
