// Package calendar provides day arithmetic for market data: calendar days,
// business days, regular trading hours and month boundaries. All days are
// normalized to UTC midnight.
package calendar

import "time"

// Regular US session expressed in UTC. The intraday boundary only matters
// for sampling and for skipping partial first days, so the fixed offset is
// acceptable across DST changes.
const (
	MarketOpenHourUTC    = 13
	MarketOpenMinuteUTC  = 30
	MarketCloseHourUTC   = 20
	MarketCloseMinuteUTC = 0
)

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayOf returns the UTC midnight of the day containing the Unix ms timestamp.
func DayOf(ms int64) time.Time {
	return Day(time.UnixMilli(ms))
}

// SameDay reports whether two Unix ms timestamps fall on the same UTC day.
func SameDay(a, b int64) bool {
	return DayOf(a).Equal(DayOf(b))
}

// NextDay returns the following calendar day.
func NextDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1)
}

// PrevDay returns the preceding calendar day.
func PrevDay(day time.Time) time.Time {
	return day.AddDate(0, 0, -1)
}

// IsBusinessDay reports whether day is a weekday. Exchange holidays are not
// modeled; the data provider returns no bars for them, which the cache
// treats as a closed market.
func IsBusinessDay(day time.Time) bool {
	wd := day.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddBusinessDays moves day by n business days (n may be negative).
func AddBusinessDays(day time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	d := Day(day)
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if IsBusinessDay(d) {
			n--
		}
	}
	return d
}

// WindowStart returns the first day of a trailing window of n business days
// ending at (and including) day.
func WindowStart(day time.Time, n int) time.Time {
	return AddBusinessDays(Day(day), -(n - 1))
}

// IsTradingHours reports whether the Unix ms timestamp falls on a weekday
// inside the regular session.
func IsTradingHours(ms int64) bool {
	t := time.UnixMilli(ms).UTC()
	if !IsBusinessDay(t) {
		return false
	}
	open := time.Date(t.Year(), t.Month(), t.Day(), MarketOpenHourUTC, MarketOpenMinuteUTC, 0, 0, time.UTC)
	close := time.Date(t.Year(), t.Month(), t.Day(), MarketCloseHourUTC, MarketCloseMinuteUTC, 0, 0, time.UTC)
	return !t.Before(open) && t.Before(close)
}

// SessionOpen returns the Unix ms of the regular session open on day.
func SessionOpen(day time.Time) int64 {
	d := Day(day)
	return time.Date(d.Year(), d.Month(), d.Day(), MarketOpenHourUTC, MarketOpenMinuteUTC, 0, 0, time.UTC).UnixMilli()
}

// NextMonthStart returns the first day of the month after day.
func NextMonthStart(day time.Time) time.Time {
	d := Day(day)
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// MonthKey formats the month containing the Unix ms timestamp as "2006-01".
func MonthKey(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01")
}

// DaysBetween returns the inclusive calendar-day count between two days.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours()/24) + 1
}
