package evcore

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// CreateTCPOutbound creates an idle TCP-OUTBOUND comm point. Call Connect
// to start a connection; the comm point may be reused for a new Connect
// after the previous one finishes (the callback observes
// NetEventNoError/Closed/Timeout the same way an inbound handler does).
//
// Write-completion flips the comm point back to reading (do_toggle_rw)
// rather than closing; whether the application issues a second request or
// closes after the read it gets back is entirely up to the callback's
// return value, same as every other role.
func CreateTCPOutbound(base *Base, bufCap int, cb Callback, arg any) *CommPoint {
	cp := &CommPoint{
		Role:     RoleTCPOutbound,
		fd:       -1,
		base:     base,
		logger:   base.Logger(),
		buf:      NewBuffer(bufCap),
		callback: cb,
		arg:      arg,
		tcp:      &tcpFraming{doToggleRW: true},
	}
	cp.replyInfo.cp = cp
	return cp
}

// DialTCPNonblocking opens a non-blocking TCP socket and issues connect,
// returning immediately whether or not the connection has completed (the
// common case for a routed peer is EINPROGRESS). The caller hands the
// returned fd to Connect.
func DialTCPNonblocking(raddr *net.TCPAddr) (int, error) {
	sa, family := netAddrToSockaddr(raddr.IP, raddr.Port)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("evcore: socket: %w", err)
	}
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("evcore: connect %s: %w", raddr, err)
	}
	return fd, nil
}

// Connect arms cp to drive a connection already initiated on fd (see
// DialTCPNonblocking). The first writable notification will consult
// SO_ERROR before attempting to write. timeout bounds how long
// the whole connect+write+read cycle may take before the comm point is
// reclaimed with NetEventTimeout; pass 0 to use DefaultTCPConnectTimeout.
func (cp *CommPoint) Connect(fd int, timeout time.Duration) error {
	cp.requireRole(RoleTCPOutbound)
	if timeout <= 0 {
		timeout = DefaultTCPConnectTimeout
	}
	cp.fd = fd
	cp.generation++
	cp.tcp.byteCount = 0
	cp.tcp.checkNBConnect = true
	cp.tcp.isReading = false
	cp.buf.Clear()
	if err := cp.registerWrite(); err != nil {
		return fmt.Errorf("evcore: tcp-outbound register: %w", err)
	}
	cp.base.armTimeoutFor(cp, timeout)
	return nil
}
