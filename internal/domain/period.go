package domain

import "time"

// DateLayout is the storage and wire format for calendar days.
const DateLayout = "2006-01-02"

// Period is a UTC calendar month, the only scoring window the engine supports.
// Start is the first day of the month at midnight, End is the first day of the
// following month (exclusive).
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriod returns the UTC calendar month containing ref.
func MonthPeriod(ref time.Time) Period {
	ref = ref.UTC()
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Key identifies the period in storage, e.g. "2026-10".
func (p Period) Key() string {
	return p.Start.Format("2006-01")
}

// FirstDay returns the first calendar day of the period.
func (p Period) FirstDay() time.Time {
	return p.Start
}

// LastDay returns the last calendar day of the period.
func (p Period) LastDay() time.Time {
	return p.End.AddDate(0, 0, -1)
}

// Contains reports whether the calendar day of t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(p.Start) && d.Before(p.End)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar day as UTC midnight.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDay renders the UTC calendar day of t as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
