package evcore

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// reusePortControl sets SO_REUSEPORT on the listening socket before bind,
// the same net.ListenConfig.Control hook the teacher uses to let multiple
// independent Bases share one listen address.
func reusePortControl(_, _ string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return ctrlErr
}

// rawFD extracts the underlying file descriptor from a net.Conn-like
// value without duplicating it, so it can be registered with a custom
// epoll instance alongside the net package's own netpoller.
func rawFD(c syscall.Conn) (int, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	if ctrlErr := rc.Control(func(ufd uintptr) { fd = int(ufd) }); ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}

// ListenUDPFD opens a UDP socket with SO_REUSEPORT and returns its raw,
// non-blocking fd for use with CreateUDP. The returned closer closes the
// underlying net.UDPConn (and with it the fd).
func ListenUDPFD(addr string) (fd int, closer func() error, err error) {
	lc := net.ListenConfig{Control: reusePortControl}
	pc, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return -1, nil, fmt.Errorf("evcore: listen udp %s: %w", addr, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return -1, nil, fmt.Errorf("evcore: listen udp %s: unexpected conn type %T", addr, pc)
	}
	fd, err = rawFD(conn)
	if err != nil {
		_ = conn.Close()
		return -1, nil, fmt.Errorf("evcore: raw fd for %s: %w", addr, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = conn.Close()
		return -1, nil, fmt.Errorf("evcore: set nonblock %s: %w", addr, err)
	}
	return fd, conn.Close, nil
}

// ListenUDPConn opens a UDP socket with SO_REUSEPORT and returns the
// *net.UDPConn itself, for use with CreateUDPAncil which needs the
// net.PacketConn to wrap in an ipv4/ipv6.PacketConn.
func ListenUDPConn(addr string) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reusePortControl}
	pc, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("evcore: listen udp %s: %w", addr, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("evcore: listen udp %s: unexpected conn type %T", addr, pc)
	}
	return conn, nil
}

// ListenTCPFD opens a TCP listening socket with SO_REUSEPORT and returns
// its raw, non-blocking fd for use with CreateTCP.
func ListenTCPFD(addr string) (fd int, closer func() error, err error) {
	lc := net.ListenConfig{Control: reusePortControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return -1, nil, fmt.Errorf("evcore: listen tcp %s: %w", addr, err)
	}
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return -1, nil, fmt.Errorf("evcore: listen tcp %s: unexpected listener type %T", addr, ln)
	}
	fd, err = rawFD(tl)
	if err != nil {
		_ = tl.Close()
		return -1, nil, fmt.Errorf("evcore: raw fd for %s: %w", addr, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = tl.Close()
		return -1, nil, fmt.Errorf("evcore: set nonblock %s: %w", addr, err)
	}
	return fd, tl.Close, nil
}
