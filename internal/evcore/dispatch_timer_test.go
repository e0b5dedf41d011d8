package evcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBase_DispatchFiresTimerAndExits drives a real epoll loop end to end:
// a Timer armed for a few milliseconds must fire on the loop goroutine and
// Exit must make Dispatch return promptly afterward.
func TestBase_DispatchFiresTimerAndExits(t *testing.T) {
	base := newTestBase(t)

	fired := make(chan struct{})
	tm := NewTimer(base, func(any) { close(fired) }, nil)
	tm.Set(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- base.Dispatch() }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	base.Exit()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not exit after Exit()")
	}
}

// TestBase_TimePointersRefreshesAcrossWakeups confirms the cached clock
// advances between dispatch wakeups rather than being frozen at loop
// start. The clock is only ever read from the loop goroutine here,
// mirroring the single-threaded contract the rest of the package relies
// on.
func TestBase_TimePointersRefreshesAcrossWakeups(t *testing.T) {
	base := newTestBase(t)

	type reading struct{ sec, usec int64 }
	readings := make(chan reading, 2)

	_, sec0, usec0 := base.TimePointers() // before loop entry, still single-threaded

	done := make(chan error, 1)
	go func() { done <- base.Dispatch() }()

	tm := NewTimer(base, func(any) {
		_, s, u := base.TimePointers() // runs on the loop goroutine
		readings <- reading{sec: s, usec: u}
	}, nil)
	tm.Set(5 * time.Millisecond)

	select {
	case r := <-readings:
		assert.Greater(t, r.sec*1_000_000+r.usec, sec0*1_000_000+usec0)
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	base.Exit()
	<-done
}
