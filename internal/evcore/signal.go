package evcore

import (
	"os"
	"os/signal"
	"sync"
)

// SignalCallback is invoked on the loop goroutine once for each delivered
// signal, after the self-pipe has woken Dispatch. It never runs on the Go
// runtime's asynchronous signal-delivery goroutine.
type SignalCallback func(sig os.Signal)

// SignalSet bridges os/signal's goroutine-based delivery into the loop:
// the delivery goroutine only ever appends to a queue and pokes the
// self-pipe; Dispatch drains the queue and invokes callbacks from the loop
// goroutine, same as every other callback this package invokes.
type SignalSet struct {
	base *Base

	mu      sync.Mutex
	pending []os.Signal
	ch      chan os.Signal
	done    chan struct{}
	bound   map[os.Signal][]SignalCallback
}

func newSignalSet(base *Base) *SignalSet {
	return &SignalSet{
		base:  base,
		ch:    make(chan os.Signal, 16),
		done:  make(chan struct{}),
		bound: make(map[os.Signal][]SignalCallback),
	}
}

// Bind registers cb to run whenever sig is delivered. Bind may be called
// multiple times for the same signal; callbacks run in registration
// order. The first Bind call starts the underlying os/signal relay
// goroutine.
func (s *SignalSet) Bind(sig os.Signal, cb SignalCallback) {
	s.mu.Lock()
	first := len(s.bound) == 0
	s.bound[sig] = append(s.bound[sig], cb)
	s.mu.Unlock()

	signal.Notify(s.ch, sig)
	if first {
		go s.relay()
	}
}

func (s *SignalSet) relay() {
	for {
		select {
		case sig, ok := <-s.ch:
			if !ok {
				return
			}
			s.mu.Lock()
			s.pending = append(s.pending, sig)
			s.mu.Unlock()
			s.base.wake.signal()
		case <-s.done:
			return
		}
	}
}

// dispatchPending runs on the loop goroutine after the self-pipe wakes
// Dispatch; it drains every signal queued since the last wakeup and
// invokes the matching bound callbacks.
func (s *SignalSet) dispatchPending() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, sig := range pending {
		s.mu.Lock()
		cbs := append([]SignalCallback(nil), s.bound[sig]...)
		s.mu.Unlock()
		for _, cb := range cbs {
			cb(sig)
		}
	}
}

func (s *SignalSet) close() {
	signal.Stop(s.ch)
	close(s.done)
}

// Signals exposes the Base's signal binding surface.
func (b *Base) Signals() *SignalSet { return b.signals }
