package evcore

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/jroosing/netevent/internal/helpers"
)

// handleTCPReadable drives one non-blocking read of the next piece of the
// framing state machine for TCP-HANDLER, TCP-OUTBOUND, and LOCAL-STREAM
// comm points: first the 2-byte big-endian length prefix, then exactly
// that many body bytes. byteCount counts bytes transferred in
// the current direction across both the prefix and the body, so the
// transition points below are purely arithmetic on it.
func (cp *CommPoint) handleTCPReadable() {
	t := cp.tcp

	var dst []byte
	switch {
	case t.byteCount < 2:
		dst = t.lenBuf[t.byteCount:2]
	default:
		dst = cp.buf.data[t.byteCount-2 : cp.buf.limit]
	}
	if len(dst) == 0 {
		// Zero-length body: nothing left to read for this message.
		cp.finishTCPRead()
		return
	}

	n, err := unix.Read(cp.fd, dst)
	switch {
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR:
		return
	case err == unix.ECONNRESET:
		cp.reclaimSilently()
		return
	case err != nil:
		cp.logf().Warn("tcp read failed", "err", err)
		cp.reclaimWithEvent(NetEventClosed)
		return
	case n == 0:
		cp.reclaimWithEvent(NetEventClosed)
		return
	}

	t.byteCount += n
	if t.byteCount < 2 {
		return // prefix still incomplete; wait for the next readable event
	}
	if t.byteCount == 2 {
		prefix := int(binary.BigEndian.Uint16(t.lenBuf[:]))
		if helpers.ClampInt(prefix, 0, cp.buf.Capacity()) != prefix {
			cp.reclaimSilently()
			return
		}
		minLen := MinDNSMessageSize
		if t.shortOK {
			minLen = 0
		}
		if prefix < minLen {
			cp.reclaimSilently()
			return
		}
		cp.buf.SetPosition(0)
		cp.buf.SetLimit(prefix)
		if prefix == 0 {
			cp.finishTCPRead()
		}
		return
	}
	if t.byteCount-2 >= cp.buf.Limit() {
		cp.finishTCPRead()
	}
}

// finishTCPRead hands the fully-received message to the callback. LOCAL-
// STREAM comm points never toggle to a write phase of their own (replies
// on that channel are sent out of band by the owner) and instead loop
// straight back into reading the next framed message.
func (cp *CommPoint) finishTCPRead() {
	cp.buf.SetPosition(0) // limit is already the message length from the prefix parse
	_ = cp.deregister()

	if cp.Role == RoleLocalStream {
		cp.callback(cp, cp.arg, NetEventNoError, &cp.replyInfo)
		cp.tcp.byteCount = 0
		cp.buf.Clear()
		if err := cp.registerRead(); err != nil {
			cp.logf().Warn("local-stream re-register failed", "err", err)
		}
		return
	}

	fdBefore := cp.fd
	send := cp.callback(cp, cp.arg, NetEventNoError, &cp.replyInfo)
	if cp.fd != fdBefore {
		return
	}
	if send {
		SendReply(&cp.replyInfo)
	} else {
		DropReply(&cp.replyInfo)
	}
}

// handleTCPWritable drives one non-blocking write step. On the very first
// write of a message it attempts a single writev of the length prefix and
// body together so they leave in one syscall when the kernel allows it;
// later partial writes fall back to writing whichever of prefix/body
// remains.
func (cp *CommPoint) handleTCPWritable() {
	t := cp.tcp
	if t.checkNBConnect {
		if !cp.checkNonblockingConnect() {
			return
		}
	}

	var n int
	var err error
	switch {
	case t.byteCount == 0:
		binary.BigEndian.PutUint16(t.lenBuf[:], helpers.ClampIntToUint16(cp.buf.Limit()))
		n, err = unix.Writev(cp.fd, [][]byte{t.lenBuf[:], cp.buf.data[:cp.buf.Limit()]})
	case t.byteCount < 2:
		n, err = unix.Write(cp.fd, t.lenBuf[t.byteCount:2])
	default:
		n, err = unix.Write(cp.fd, cp.buf.data[t.byteCount-2:cp.buf.Limit()])
	}

	switch {
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR:
		return
	case err == unix.EPIPE || err == unix.ECONNRESET:
		cp.reclaimSilently()
		return
	case err != nil:
		cp.logf().Warn("tcp write failed", "err", err)
		cp.reclaimWithEvent(NetEventClosed)
		return
	}

	t.byteCount += n
	total := 2 + cp.buf.Limit()
	if t.byteCount < total {
		return // wait for the next writable event
	}
	cp.finishTCPWrite()
}

func (cp *CommPoint) finishTCPWrite() {
	t := cp.tcp
	cp.buf.Clear()
	_ = cp.deregister()
	t.byteCount = 0

	if t.doToggleRW {
		t.isReading = true
		if err := cp.registerRead(); err != nil {
			cp.logf().Warn("tcp re-register for read failed", "err", err)
		}
		return
	}

	switch cp.Role {
	case RoleTCPHandler:
		cp.reclaimHandler(NetEventNoError, false)
	default:
		cp.closeConn()
	}
}

// checkNonblockingConnect consults SO_ERROR on the first writable
// notification after a nonblocking connect. It returns true if
// the caller should proceed to the normal write step in the same
// invocation (the connect succeeded), false if it fully handled the
// event itself (still connecting, or the connection was abandoned).
func (cp *CommPoint) checkNonblockingConnect() bool {
	errno, err := unix.GetsockoptInt(cp.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		cp.logf().Warn("so_error lookup failed", "err", err)
		cp.closeConn()
		return false
	}
	switch unix.Errno(errno) { //nolint:gosec // errno is always a small non-negative syscall error code
	case 0:
		cp.tcp.checkNBConnect = false
		return true
	case unix.EINPROGRESS, unix.EWOULDBLOCK, unix.EAGAIN:
		return false
	case unix.ECONNREFUSED, unix.EHOSTUNREACH, unix.EHOSTDOWN, unix.ENETUNREACH:
		cp.reclaimSilently()
		return false
	default:
		cp.reclaimWithEvent(NetEventClosed)
		return false
	}
}

// reclaimWithEvent surfaces event to the callback (unless suppressed) and
// tears the comm point down, dispatching to the role-appropriate cleanup.
func (cp *CommPoint) reclaimWithEvent(event NetEvent) {
	switch cp.Role {
	case RoleTCPHandler:
		cp.reclaimHandler(event, true)
	case RoleTCPOutbound, RoleLocalStream:
		if !cp.tcp.noCloseNotify {
			cp.callback(cp, cp.arg, event, nil)
		}
		cp.closeConn()
	case RoleRaw:
		cp.callback(cp, cp.arg, event, nil)
	}
}

// reclaimSilently tears the comm point down without invoking the
// callback, used for pre-callback protocol violations (malformed length
// prefix) where no request was ever surfaced to the application.
func (cp *CommPoint) reclaimSilently() {
	switch cp.Role {
	case RoleTCPHandler:
		cp.reclaimHandler(NetEventClosed, false)
	default:
		cp.closeConn()
	}
}

// closeConn closes a non-pooled TCP comm point (TCP-OUTBOUND or
// LOCAL-STREAM) in place; it is not returned to any free-list.
func (cp *CommPoint) closeConn() {
	_ = cp.deregister()
	if cp.fd >= 0 {
		_ = unix.Close(cp.fd)
		cp.fd = -1
	}
	cp.generation++
}

// onTimeout fires when an armed timeout for this comm point expires
// before the pending read or write completed.
func (cp *CommPoint) onTimeout() {
	cp.reclaimWithEvent(NetEventTimeout)
}
