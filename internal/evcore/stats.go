package evcore

import (
	"sync/atomic"
	"unsafe"
)

// Stats holds the event core's own operational counters, separate from
// anything the resolver/cache layers above it track. Every field is an
// atomic counter so a monitoring goroutine may snapshot them without
// coordinating with the loop goroutine, mirroring the teacher's
// internal/server/stats.go split between protocol logic and accounting.
type Stats struct {
	UDPReceived    atomic.Uint64
	UDPSent        atomic.Uint64
	TCPAccepted    atomic.Uint64
	TCPCompleted   atomic.Uint64
	TCPTimedOut    atomic.Uint64
	TCPDropped     atomic.Uint64
	PoolExhausted  atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats suitable for logging or
// exposing over a metrics endpoint.
type Snapshot struct {
	UDPReceived   uint64
	UDPSent       uint64
	TCPAccepted   uint64
	TCPCompleted  uint64
	TCPTimedOut   uint64
	TCPDropped    uint64
	PoolExhausted uint64
}

// timeoutBookkeepingSize approximates the fixed per-comm-point cost of an
// armed timeout entry (the heap node plus its closure), so MemUsage
// reflects more than just the buffer it's most often dominated by.
const timeoutBookkeepingSize = int(unsafe.Sizeof(timeoutEntry{})) + 32

// MemUsage sums the memory this comm point holds: its own header, its I/O
// buffer (if any), and a fixed allowance for its timeout bookkeeping. For
// a TCP-ACCEPT comm point it additionally sums every pooled TCP-HANDLER's
// usage, so the number reflects the whole connection pool rather than
// just the accept socket itself; this walks the pool once, so cost is
// proportional to pool size rather than constant.
func (cp *CommPoint) MemUsage() int {
	total := int(unsafe.Sizeof(*cp)) + timeoutBookkeepingSize
	if cp.buf != nil {
		total += cp.buf.Capacity()
	}
	if cp.Role == RoleTCPAccept && cp.accept != nil {
		for _, h := range cp.accept.pool.handlers {
			if h != nil {
				total += h.MemUsage()
			}
		}
	}
	return total
}

// Snapshot reads every counter without blocking the loop goroutine.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		UDPReceived:   s.UDPReceived.Load(),
		UDPSent:       s.UDPSent.Load(),
		TCPAccepted:   s.TCPAccepted.Load(),
		TCPCompleted:  s.TCPCompleted.Load(),
		TCPTimedOut:   s.TCPTimedOut.Load(),
		TCPDropped:    s.TCPDropped.Load(),
		PoolExhausted: s.PoolExhausted.Load(),
	}
}
