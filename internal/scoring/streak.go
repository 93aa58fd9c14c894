// Package scoring holds the pure computations behind leaderboards and levels:
// period-bounded streaks, the points formula and XP tiers.
package scoring

import (
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// DaySet is a set of UTC calendar days.
type DaySet map[string]struct{}

// NewDaySet builds a set from times, keeping only their UTC calendar day.
func NewDaySet(days ...time.Time) DaySet {
	set := make(DaySet, len(days))
	for _, d := range days {
		set.Add(d)
	}
	return set
}

// DaySetFromKeys builds a set from YYYY-MM-DD keys.
func DaySetFromKeys(keys []string) DaySet {
	set := make(DaySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Add inserts the calendar day of t.
func (s DaySet) Add(t time.Time) {
	s[domain.FormatDay(t)] = struct{}{}
}

// Has reports whether the calendar day of t is in the set.
func (s DaySet) Has(t time.Time) bool {
	_, ok := s[domain.FormatDay(t)]
	return ok
}

// Streak counts consecutive days present in days, walking backward from the
// earlier of today and the period's last day. The walk stops at the first gap or
// at the period's first day, so a streak never spans a month reset.
func Streak(days DaySet, today time.Time, period domain.Period) int {
	if len(days) == 0 {
		return 0
	}

	day := domain.Day(today)
	if last := period.LastDay(); day.After(last) {
		day = last
	}

	first := period.FirstDay()
	streak := 0
	for !day.Before(first) && days.Has(day) {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// NextRunningStreak advances a running (lifetime) streak when a workout is
// logged on day. A workout the day after the previous one extends the streak;
// anything else starts over at one.
func NextRunningStreak(current int, last *time.Time, day time.Time) int {
	if last == nil {
		return 1
	}
	prev := domain.Day(*last)
	switch domain.Day(day).Sub(prev) {
	case 24 * time.Hour:
		return current + 1
	case 0:
		return max(current, 1)
	default:
		return 1
	}
}
