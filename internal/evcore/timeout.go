package evcore

import (
	"container/heap"
	"time"
)

// timeoutEntry is one pending deadline in the loop's timeout wheel. Both
// per-CommPoint timeouts (armed via Base.armTimeoutFor) and standalone
// Timers (armed via Base.armTimeout) share this single heap: cancellation
// is handled by the closure itself (checking a captured generation or
// sequence number) rather than by removing the entry, which keeps the
// heap a plain min-heap with no O(log n) arbitrary-removal support to
// implement.
type timeoutEntry struct {
	at     time.Time
	onFire func()
}

type timeoutHeap []*timeoutEntry

func (h timeoutHeap) Len() int            { return len(h) }
func (h timeoutHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timeoutHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timeoutHeap) Push(x any)         { *h = append(*h, x.(*timeoutEntry)) }
func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// armTimeout schedules onFire to run on the loop goroutine no earlier
// than d from now. onFire is responsible for deciding whether it is still
// relevant when it runs.
func (b *Base) armTimeout(d time.Duration, onFire func()) {
	if d < 0 {
		d = 0
	}
	heap.Push(&b.timeouts, &timeoutEntry{at: time.Now().Add(d), onFire: onFire})
}

// armTimeoutFor arms a timeout tied to a specific CommPoint's current
// generation, so that if the comm point is reclaimed and its slot reused
// before the timeout fires, the stale entry is a no-op.
func (b *Base) armTimeoutFor(cp *CommPoint, d time.Duration) {
	if d <= 0 {
		return
	}
	gen := cp.generation
	b.armTimeout(d, func() {
		if cp.generation != gen {
			return
		}
		cp.onTimeout()
	})
}

// nextTimeoutMillis returns the epoll_wait timeout argument: -1 to block
// indefinitely if nothing is armed, 0 if something is already due, or the
// millisecond distance to the next deadline otherwise.
func (b *Base) nextTimeoutMillis() int {
	if len(b.timeouts) == 0 {
		return -1
	}
	d := time.Until(b.timeouts[0].at)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > int64(maxInt32) {
		ms = int64(maxInt32)
	}
	return int(ms)
}

const maxInt32 = 1<<31 - 1

// fireExpiredTimeouts pops and invokes every entry whose deadline has
// passed as of now.
func (b *Base) fireExpiredTimeouts(now time.Time) {
	for len(b.timeouts) > 0 && !b.timeouts[0].at.After(now) {
		e := heap.Pop(&b.timeouts).(*timeoutEntry)
		e.onFire()
	}
}
