//go:build linux

package evcore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// wakeup is the classic self-pipe trick: a pipe whose read end is
// registered with the poller so that anything happening outside the loop
// goroutine (a signal, or a cross-goroutine Exit call) can force
// EpollWait to return immediately instead of blocking for the full
// computed timeout.
type wakeup struct {
	r, w int
}

func newWakeup() (*wakeup, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("evcore: pipe2: %w", err)
	}
	return &wakeup{r: fds[0], w: fds[1]}, nil
}

// signal is safe to call from any goroutine, including an os/signal
// delivery goroutine.
func (wk *wakeup) signal() {
	var b [1]byte
	_, _ = unix.Write(wk.w, b[:])
}

// drain empties the pipe after the loop goroutine observes it readable.
// Must only be called from the loop goroutine.
func (wk *wakeup) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(wk.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (wk *wakeup) close() {
	_ = unix.Close(wk.r)
	_ = unix.Close(wk.w)
}
