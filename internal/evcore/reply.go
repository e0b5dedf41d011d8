package evcore

import (
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ReplyInfo carries everything needed to answer a received message back
// to its sender. Its fields are only meaningful for the duration
// of the callback invocation that received them (UDP/UDP-ANCIL) or until
// the comm point's buffer is next cleared (TCP/LOCAL-STREAM); callbacks
// that need to reply asynchronously must copy the buffer contents and
// relevant fields out before returning.
type ReplyInfo struct {
	Addr net.Addr
	Len  int

	// SrcType and the PktInfo fields are only populated for UDP-ANCIL:
	// 0 means no ancillary destination info was captured for this
	// datagram, 4/6 says which of PktInfo4/PktInfo6 holds it.
	SrcType  int
	PktInfo4 *ipv4.ControlMessage
	PktInfo6 *ipv6.ControlMessage

	cp *CommPoint
}

// SendReply sends the comm point's current buffer contents back to the
// peer in r, using each role's own wire mechanics: sendto for UDP,
// sendmsg-with-pktinfo for UDP-ANCIL, or re-arming the comm point for a
// framed write for TCP/LOCAL-STREAM.
func SendReply(r *ReplyInfo) {
	if r == nil || r.cp == nil {
		return
	}
	cp := r.cp
	switch cp.Role {
	case RoleUDP:
		cp.sendUDPReply(r)
	case RoleUDPAncil:
		cp.sendUDPAncilReply(r)
	case RoleTCPHandler, RoleTCPOutbound, RoleLocalStream:
		cp.tcp.isReading = false
		cp.tcp.byteCount = 0
		if err := cp.registerWrite(); err != nil {
			cp.logf().Warn("send reply register failed", "err", err)
			return
		}
		cp.base.armTimeoutFor(cp, DefaultTCPQueryTimeout)
	}
}

// DropReply discards the current request without replying. For
// UDP/UDP-ANCIL this is a no-op (the datagram is simply not
// answered); for TCP/LOCAL-STREAM it reclaims the connection.
func DropReply(r *ReplyInfo) {
	if r == nil || r.cp == nil {
		return
	}
	cp := r.cp
	switch cp.Role {
	case RoleUDP, RoleUDPAncil:
		// Nothing to do: the datagram is simply not answered.
	case RoleTCPHandler:
		cp.reclaimHandler(NetEventClosed, false)
	case RoleTCPOutbound, RoleLocalStream:
		cp.closeConn()
	}
}
