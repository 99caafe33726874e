package budget

import "time"

// WallClock tracks a run's wall-time budget. Phases check Expired between
// units of work; nothing is interrupted mid-flight, since a half-finished
// dedup pass is not a meaningful result.
type WallClock struct {
	start   time.Time
	limit   time.Duration
	nowFunc func() time.Time // injectable for tests
}

// NewWallClock starts the clock with the given limit. A zero limit never
// expires.
func NewWallClock(limit time.Duration) *WallClock {
	return &WallClock{
		start:   time.Now(),
		limit:   limit,
		nowFunc: time.Now,
	}
}

// Expired reports whether the budget has been used up
func (c *WallClock) Expired() bool {
	if c.limit <= 0 {
		return false
	}
	return c.nowFunc().Sub(c.start) >= c.limit
}

// Remaining returns the time left in the budget; zero when expired or when
// no limit is set
func (c *WallClock) Remaining() time.Duration {
	if c.limit <= 0 {
		return 0
	}
	remaining := c.limit - c.nowFunc().Sub(c.start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Elapsed returns time since the clock started
func (c *WallClock) Elapsed() time.Duration {
	return c.nowFunc().Sub(c.start)
}
