package evcore

import (
	"log/slog"
	"net"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// Role identifies which role a CommPoint is playing. Operations
// that only make sense for one role panic with ErrInvariant if called on a
// CommPoint of a different role.
type Role int

const (
	RoleUDP Role = iota
	RoleUDPAncil
	RoleTCPAccept
	RoleTCPHandler
	RoleTCPOutbound
	RoleLocalStream
	RoleRaw
)

func (r Role) String() string {
	switch r {
	case RoleUDP:
		return "udp"
	case RoleUDPAncil:
		return "udp-ancil"
	case RoleTCPAccept:
		return "tcp-accept"
	case RoleTCPHandler:
		return "tcp-handler"
	case RoleTCPOutbound:
		return "tcp-outbound"
	case RoleLocalStream:
		return "local-stream"
	case RoleRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Callback is invoked on the Base's loop goroutine when a comm point has a
// complete unit of work ready (a datagram, a framed TCP message, a raw
// readiness event, a timeout, or a close). For NetEventNoError on UDP,
// UDP-ANCIL, TCP-HANDLER and TCP-OUTBOUND comm points the return value
// decides whether SendReply or DropReply happens next; LOCAL-STREAM and RAW
// comm points ignore it, and so does every other event.
type Callback func(cp *CommPoint, arg any, event NetEvent, reply *ReplyInfo) bool

// tcpFraming holds the length-prefix framing state machine's mutable
// fields, shared by TCP-HANDLER, TCP-OUTBOUND, and LOCAL-STREAM.
type tcpFraming struct {
	isReading      bool
	byteCount      int // bytes transferred in the current direction, prefix+body combined
	lenBuf         [2]byte
	doToggleRW     bool // write completion re-arms for read instead of terminating
	checkNBConnect bool // next writable event must consult SO_ERROR first
	shortOK        bool // suppress the MinDNSMessageSize floor (LOCAL-STREAM)
	noCloseNotify  bool // reclaim/close does not invoke the callback
}

type acceptState struct {
	pool    *tcpPool
	timeout time.Duration
}

// handlerState links a TCP-HANDLER back to the accept point that owns its
// slot in the free-list pool.
type handlerState struct {
	parent    *CommPoint
	poolIndex int
}

type udpAncilState struct {
	isV6  bool
	pc4   *ipv4.PacketConn
	pc6   *ipv6.PacketConn
}

// CommPoint is the single registered unit the event loop dispatches
// readiness, timeout, and signal notifications to. One struct serves every
// role: the header fields below are shared, and each role-payload field is
// populated only for the roles that use it (tcp for TCP-HANDLER,
// TCP-OUTBOUND and LOCAL-STREAM, handler alongside tcp for TCP-HANDLER,
// accept for TCP-ACCEPT, udpAncil for UDP-ANCIL; UDP and RAW use none).
type CommPoint struct {
	Role Role

	fd         int
	base       *Base
	logger     *slog.Logger
	buf        *Buffer
	callback   Callback
	arg        any
	timeout    time.Duration
	generation uint64

	registered bool
	regEvents  uint32

	doNotClose bool // fd is owned by something other than this CommPoint

	replyInfo ReplyInfo

	tcp      *tcpFraming
	accept   *acceptState
	handler  *handlerState
	udpAncil *udpAncilState
}

func (cp *CommPoint) logf() *slog.Logger {
	if cp.logger != nil {
		return cp.logger
	}
	return slog.Default()
}

func (cp *CommPoint) requireRole(roles ...Role) {
	for _, r := range roles {
		if cp.Role == r {
			return
		}
	}
	panic(ErrInvariant)
}

// FD returns the comm point's current file descriptor, or -1 if closed.
func (cp *CommPoint) FD() int { return cp.fd }

// Buffer returns the comm point's I/O buffer, the opaque byte region
// handed to callbacks: readable messages arrive flipped to drain mode
// (position 0, limit at the received length), and a callback that wants to
// reply writes its response starting at position 0 and calls SetLimit to
// mark how much of it is meaningful before returning true. Nil for
// TCP-ACCEPT and RAW comm points, which never own a message buffer.
func (cp *CommPoint) Buffer() *Buffer { return cp.buf }

// arm registers interest in events on the comm point's current fd,
// promoting from "not registered" (epoll_ctl ADD) or re-arming an
// already-registered fd to a new interest set (epoll_ctl MOD).
func (cp *CommPoint) arm(events uint32) error {
	if cp.fd < 0 {
		panic(ErrInvariant)
	}
	if cp.registered {
		if events == cp.regEvents {
			return nil
		}
		if err := cp.base.poller.modify(cp.fd, events); err != nil {
			return err
		}
		cp.regEvents = events
		return nil
	}
	if err := cp.base.poller.add(cp.fd, events); err != nil {
		return err
	}
	cp.base.fdTable[cp.fd] = cp
	cp.registered = true
	cp.regEvents = events
	return nil
}

func (cp *CommPoint) registerRead() error  { return cp.arm(unix.EPOLLIN) }
func (cp *CommPoint) registerWrite() error { return cp.arm(unix.EPOLLOUT) }

// deregister removes the comm point from the poller without closing its
// fd, used both to pause accept and to detach before a close.
func (cp *CommPoint) deregister() error {
	if !cp.registered {
		return nil
	}
	err := cp.base.poller.remove(cp.fd)
	delete(cp.base.fdTable, cp.fd)
	cp.registered = false
	return err
}

// StopListening deregisters the comm point from the poller while leaving
// its fd open.
func (cp *CommPoint) StopListening() error {
	return cp.deregister()
}

// StartListening re-registers the comm point. Passing fd < 0 keeps the
// current fd; passing events == 0 restores the event mask last used
// before StopListening.
func (cp *CommPoint) StartListening(fd int, events uint32) error {
	if fd >= 0 {
		cp.fd = fd
	}
	if events == 0 {
		events = cp.regEvents
	}
	return cp.arm(events)
}

// Close deregisters and closes the comm point's fd (unless it was marked
// do-not-close at construction).
func (cp *CommPoint) Close() {
	_ = cp.deregister()
	if cp.fd >= 0 {
		if !cp.doNotClose {
			_ = unix.Close(cp.fd)
		}
		cp.fd = -1
	}
}

// Delete closes the comm point (and, for TCP-ACCEPT, every pooled
// handler) and releases its buffer. Delete is terminal; the CommPoint must
// not be used afterward.
func (cp *CommPoint) Delete() {
	cp.Close()
	if cp.Role == RoleTCPAccept && cp.accept != nil {
		for _, h := range cp.accept.pool.handlers {
			h.Close()
			if h.buf != nil {
				h.buf.Release()
			}
			h.buf = nil
		}
	}
	if cp.buf != nil {
		cp.buf.Release()
	}
	cp.buf = nil
}

func sockaddrToUDPAddr(sa unix.Sockaddr) *net.UDPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port, Zone: zoneFromIfIndex(a.ZoneId)}
	default:
		return nil
	}
}

func sockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port, Zone: zoneFromIfIndex(a.ZoneId)}
	default:
		return nil
	}
}

func zoneFromIfIndex(id uint32) string {
	if id == 0 {
		return ""
	}
	if iface, err := net.InterfaceByIndex(int(id)); err == nil {
		return iface.Name
	}
	return ""
}

// netAddrToSockaddr builds a raw unix.Sockaddr plus the matching address
// family for a Go IP/port pair, used by both UDP sendto and TCP connect.
func netAddrToSockaddr(ip net.IP, port int) (unix.Sockaddr, int) {
	if v4 := ip.To4(); v4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = port
		copy(sa.Addr[:], v4)
		return &sa, unix.AF_INET
	}
	var sa unix.SockaddrInet6
	sa.Port = port
	v6 := ip.To16()
	copy(sa.Addr[:], v6)
	return &sa, unix.AF_INET6
}
