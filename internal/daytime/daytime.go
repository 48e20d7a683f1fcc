// Package daytime works with times of day in local time.
package daytime

import "time"

// Unit converts a clock reading into a duration since midnight.
func Unit(h, m, s, ms float64) time.Duration {
	return time.Duration((((h*60+m)*60+s)*1000 + ms) * float64(time.Millisecond))
}

// Midnight returns the start of t's day in t's location.
func Midnight(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// Of returns how far into its day t is.
func Of(t time.Time) time.Duration { return t.Sub(Midnight(t)) }

// Between reports whether t falls within [start, end]. A window whose end
// is before its start wraps past midnight.
func Between(start, end time.Duration, t time.Time) bool {
	now := Of(t)
	if start < end {
		return now >= start && now <= end
	}
	return now <= end || now >= start
}
