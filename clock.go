package jwtoken

import "time"

// Clock supplies the current time. It has the same shape as jwt.Clock so one
// value drives both construction checks and signature-layer validation.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// normalizeTime converts t to UTC and truncates it to whole seconds.
// Truncate also drops the monotonic reading, so == works on the result.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
