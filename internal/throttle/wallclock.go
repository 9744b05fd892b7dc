package throttle

import "time"

// TimeCompare orders time.Time instants ascending.
func TimeCompare(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// timeSub computes now-size for wall-clock windows.
func timeSub(now time.Time, size time.Duration) time.Time {
	return now.Add(-size)
}

// NewWallClock returns a Window admitting at most limit events within a
// trailing span of window wall-clock time, used by the eager order-creation
// path (spec C4, wall-clock variant).
func NewWallClock(limit int, window time.Duration) *Window[time.Time, time.Duration] {
	return New(limit, window, timeSub, TimeCompare)
}

// NewTickWindow returns a Window admitting at most limit events within a
// trailing span of window ticks, used by the in-tick assignment planner
// (spec C4, tick variant).
func NewTickWindow(limit int, window int64) *Window[int64, int64] {
	return New(limit, window, TickSub, TickCompare)
}
