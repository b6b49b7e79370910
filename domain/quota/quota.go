// Package quota provides pure functions for daily quota enforcement.
// All functions are deterministic with no side effects.
package quota

import "time"

// Unlimited marks a tier limit with no daily cap.
const Unlimited int64 = -1

// Daily is the stored per-identity daily counter (value type).
// Day is a UTC calendar date in YYYY-MM-DD form. If Day differs from the
// current date the counter is logically zero regardless of Count: the
// reset is lazy, evaluated at read time, and idempotent.
type Daily struct {
	Count int64
	Day   string
}

// CheckResult reports the outcome of a daily quota check (value type).
type CheckResult struct {
	Allowed bool
	Used    int64
	Limit   int64
}

// Day formats t as the UTC calendar date used for rollover comparison.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DayStart returns midnight UTC of t's calendar date.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Effective applies lazy rollover: the stored count if it belongs to
// today, otherwise zero.
func Effective(d Daily, now time.Time) int64 {
	if d.Day != Day(now) {
		return 0
	}
	return d.Count
}

// Rollover returns the successor state after counting one conversion at
// now: a same-day increment, or adoption of the new day with count 1.
// Applying it twice from the same stored state is NOT idempotent (it
// counts); adoption of a new day is.
func Rollover(d Daily, now time.Time) Daily {
	today := Day(now)
	if d.Day != today {
		return Daily{Count: 1, Day: today}
	}
	return Daily{Count: d.Count + 1, Day: today}
}

// Bounded reports whether limit is a finite cap.
func Bounded(limit int64) bool {
	return limit != Unlimited
}

// Check compares effective usage against a tier limit. Unlimited tiers
// always pass; callers are expected to skip the check (and the
// increment) entirely for them, but Check remains correct if called.
func Check(used, limit int64) CheckResult {
	if !Bounded(limit) {
		return CheckResult{Allowed: true, Used: used, Limit: limit}
	}
	return CheckResult{
		Allowed: used < limit,
		Used:    used,
		Limit:   limit,
	}
}
