package evcore

import "time"

// clock is the event loop's cached notion of "now". The dispatch loop
// refreshes it once per wakeup (not once per event) so that every callback
// invoked from the same readiness batch observes an identical timestamp,
// matching unbound's comm_base.now behavior: cheap, coherent within a
// batch, and never more stale than one poll interval.
type clock struct {
	wall    time.Time
	seconds uint32
	usec    int64
}

func (c *clock) refresh() {
	c.wall = time.Now()
	c.seconds = uint32(c.wall.Unix()) //nolint:gosec // wraps in 2106, matches unbound's own 32-bit now
	c.usec = int64(c.wall.Nanosecond() / 1000)
}

// Seconds returns the cached Unix time in seconds, truncated to 32 bits.
func (c *clock) Seconds() uint32 { return c.seconds }

// Timeval returns the cached time as (seconds, microseconds), mirroring
// the struct timeval pair the spec's time_pointers component names.
func (c *clock) Timeval() (sec int64, usec int64) { return c.wall.Unix(), c.usec }

// Now returns the cached wall-clock time as a time.Time.
func (c *clock) Now() time.Time { return c.wall }
