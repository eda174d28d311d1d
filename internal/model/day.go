package model

import "time"

// DateLayout is the calendar date format used by meal_date columns and
// query parameters.
const DateLayout = "2006-01-02"

// Day formats t as a calendar date in UTC, matching how the app has always
// keyed "today".
func Day(t time.Time) string { return t.UTC().Format(DateLayout) }

// Today returns the current UTC calendar date.
func Today() string { return Day(time.Now()) }

// ParseDay validates a YYYY-MM-DD string.
func ParseDay(s string) (string, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}
