package evcore

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Base is the event loop itself: one epoll instance, one fd→CommPoint
// registry, one timeout wheel, one pending-signal queue. Exactly one
// goroutine may call Dispatch on a given Base at a time, and every
// CommPoint/Timer/SignalSet registered against it must only be touched
// from that goroutine (Exit and the signal delivery path are the two
// documented exceptions: Exit only sets an atomic flag and writes to the
// self-pipe, and signal delivery only queues under a mutex and writes to
// the self-pipe).
type Base struct {
	poller  *poller
	wake    *wakeup
	clock   clock
	fdTable map[int]*CommPoint
	timeouts timeoutHeap

	signals *SignalSet

	// Stats accumulates transport-level counters for every comm point
	// driven by this Base. It is always non-nil.
	Stats *Stats

	logger  *slog.Logger
	exiting atomic.Bool

	// fatal is invoked when the poller itself reports an unrecoverable
	// error. It defaults to logging and exiting the process, since the
	// loop cannot make progress once epoll itself is broken.
	fatal func(error)
}

// NewBase creates an event loop backed by a fresh epoll instance and
// self-pipe. The caller must call Close when the loop is done.
func NewBase(logger *slog.Logger) (*Base, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	wk, err := newWakeup()
	if err != nil {
		_ = p.close()
		return nil, err
	}
	b := &Base{
		poller:  p,
		wake:    wk,
		fdTable: make(map[int]*CommPoint),
		logger:  logger,
		fatal:   defaultFatal(logger),
		Stats:   &Stats{},
	}
	b.signals = newSignalSet(b)
	if err := p.add(wk.r, unix.EPOLLIN); err != nil {
		_ = wk.close()
		_ = p.close()
		return nil, err
	}
	b.clock.refresh()
	return b, nil
}

func defaultFatal(logger *slog.Logger) func(error) {
	return func(err error) {
		logger.Error("evcore: fatal dispatch error", "err", err)
		os.Exit(1)
	}
}

// Close releases the loop's own epoll instance and self-pipe. It does not
// touch any registered CommPoint; callers are responsible for calling
// Delete on those themselves.
func (b *Base) Close() error {
	b.signals.close()
	b.wake.close()
	return b.poller.close()
}

// Logger returns the logger the Base was constructed with, for comm
// points and timers that want to log through the same sink.
func (b *Base) Logger() *slog.Logger { return b.logger }

// TimePointers returns the loop's cached clock view, refreshed once per
// wakeup rather than once per event.
func (b *Base) TimePointers() (seconds uint32, sec int64, usec int64) {
	s, u := b.clock.Timeval()
	return b.clock.Seconds(), s, u
}

// Exit requests that Dispatch return after finishing the current batch of
// callbacks. It is safe to call from any goroutine, including a signal
// handler's delivery goroutine.
func (b *Base) Exit() {
	b.exiting.Store(true)
	b.wake.signal()
}

// Dispatch runs the event loop until Exit is called or the poller reports
// a fatal error. It blocks the calling goroutine for its entire duration.
func (b *Base) Dispatch() error {
	for {
		if b.exiting.Load() {
			return nil
		}
		timeoutMs := b.nextTimeoutMillis()
		events, err := b.poller.wait(timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			wrapped := fmt.Errorf("evcore: epoll_wait: %w", err)
			b.fatal(wrapped)
			return wrapped
		}
		b.clock.refresh()
		for _, ev := range events {
			fd := int(ev.Fd)
			if fd == b.wake.r {
				b.wake.drain()
				b.signals.dispatchPending()
				continue
			}
			cp, ok := b.fdTable[fd]
			if !ok {
				continue
			}
			b.dispatchCommPointEvent(cp, ev.Events)
		}
		b.fireExpiredTimeouts(time.Now())
	}
}

func (b *Base) dispatchCommPointEvent(cp *CommPoint, events uint32) {
	switch cp.Role {
	case RoleUDP:
		if events&(unix.EPOLLIN|unix.EPOLLERR) != 0 {
			cp.onUDPReadable()
		}
	case RoleUDPAncil:
		if events&(unix.EPOLLIN|unix.EPOLLERR) != 0 {
			cp.onUDPAncilReadable()
		}
	case RoleTCPAccept:
		if events&(unix.EPOLLIN|unix.EPOLLERR) != 0 {
			cp.onAcceptReadable()
		}
	case RoleTCPHandler, RoleTCPOutbound, RoleLocalStream:
		if events&(unix.EPOLLIN) != 0 {
			cp.handleTCPReadable()
		}
		if cp.fd >= 0 && events&(unix.EPOLLOUT) != 0 {
			cp.handleTCPWritable()
		}
		if cp.fd >= 0 && events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 && events&(unix.EPOLLIN|unix.EPOLLOUT) == 0 {
			cp.reclaimWithEvent(NetEventClosed)
		}
	case RoleRaw:
		if events&(unix.EPOLLIN|unix.EPOLLOUT) != 0 {
			cp.generation++ // an event cancels any pending ArmTimeout deadline
		}
		if events&unix.EPOLLIN != 0 {
			cp.callback(cp, cp.arg, NetEventNoError, nil)
		}
		if cp.fd >= 0 && events&unix.EPOLLOUT != 0 {
			cp.callback(cp, cp.arg, NetEventNoError, nil)
		}
	}
}
