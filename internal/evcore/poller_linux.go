//go:build linux

package evcore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// poller wraps a single epoll instance. It is not safe for concurrent use;
// Base serializes all access to it from the loop goroutine, matching
// gnet's and evio's one-poller-per-loop design.
type poller struct {
	epfd   int
	events []unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("evcore: epoll_create1: %w", err)
	}
	return &poller{epfd: epfd, events: make([]unix.EpollEvent, 128)}, nil
}

func (p *poller) add(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)} //nolint:gosec // fd is a small positive descriptor
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("evcore: epoll_ctl add fd=%d: %w", fd, err)
	}
	return nil
}

func (p *poller) modify(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)} //nolint:gosec // fd is a small positive descriptor
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("evcore: epoll_ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

func (p *poller) remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("evcore: epoll_ctl del fd=%d: %w", fd, err)
	}
	return nil
}

// wait blocks for up to timeoutMs milliseconds (-1 meaning forever) and
// returns the events that fired. The returned slice aliases the poller's
// internal buffer and is only valid until the next call to wait.
func (p *poller) wait(timeoutMs int) ([]unix.EpollEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		return nil, err
	}
	if n == len(p.events) && n < 4096 {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return p.events[:n], nil
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}
