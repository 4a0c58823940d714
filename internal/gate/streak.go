package gate

import "time"

const dayLayout = "2006-01-02"

// civilDay truncates a time to its calendar day string. Streaks are
// calendar-day based, not 24-hour-window based.
func civilDay(t time.Time) string {
	return t.Format(dayLayout)
}

// nextStreak applies the streak rule: same day keeps the count,
// consecutive days increment it, anything else resets to 1.
func nextStreak(c CounterState, today string) int {
	if c.LastActiveDay == "" {
		return 1
	}
	switch daysBetween(c.LastActiveDay, today) {
	case 0:
		return c.StreakCount
	case 1:
		return c.StreakCount + 1
	default:
		return 1
	}
}

// daysBetween counts calendar days from a to b. Unparseable inputs
// count as a gap, resetting the streak.
func daysBetween(a, b string) int {
	ta, errA := time.Parse(dayLayout, a)
	tb, errB := time.Parse(dayLayout, b)
	if errA != nil || errB != nil {
		return -1
	}
	return int(tb.Sub(ta).Hours() / 24)
}
