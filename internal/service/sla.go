package service

import "time"

// Clock returns the current moment. Components take one so tests can pin time.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now()
}

// ClockIn reports the current moment in loc; calendar-day filters use the
// clock's location.
func ClockIn(loc *time.Location) Clock {
	if loc == nil {
		return SystemClock
	}
	return func() time.Time {
		return time.Now().In(loc)
	}
}

func HoursElapsed(createdAt time.Time, now time.Time) float64 {
	return float64(now.Sub(createdAt).Milliseconds()) / float64(time.Hour.Milliseconds())
}

// IsBreached reports whether the SLA window has been exceeded. A missing
// creation time cannot be assessed and counts as compliant.
func IsBreached(createdAt *time.Time, slaHours int, now time.Time) bool {
	if createdAt == nil {
		return false
	}
	return HoursElapsed(*createdAt, now) > float64(slaHours)
}
