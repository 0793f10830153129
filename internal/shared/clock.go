package shared

import "time"

// Clock supplies wall-clock time so services can be tested with a
// pinned instant.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports ts.
func FixedClock(ts time.Time) Clock {
	return func() time.Time { return ts }
}
