package evcore

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// CreateUDPAncil registers conn as a UDP-ANCIL comm point, using
// golang.org/x/net's typed ipv4/ipv6 ControlMessage instead of
// hand-parsed cmsghdr bytes to capture and restate the destination
// address/interface of each datagram — required so a multi-homed resolver
// replies from the same local address a query arrived on.
//
// conn is adopted, not owned: CreateUDPAncil never closes it (the comm
// point is marked do-not-close), since golang.org/x/net needs to keep
// driving it as a net.PacketConn for the lifetime of the wrapping
// ipv4/ipv6.PacketConn.
func CreateUDPAncil(base *Base, conn *net.UDPConn, bufCap int, cb Callback, arg any) (*CommPoint, error) {
	fd, err := rawFD(conn)
	if err != nil {
		return nil, fmt.Errorf("evcore: udp-ancil raw fd: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("evcore: udp-ancil set nonblock: %w", err)
	}

	isV6 := conn.LocalAddr().(*net.UDPAddr).IP.To4() == nil //nolint:forcetypeassert // conn came from net.ListenUDP
	st := &udpAncilState{isV6: isV6}
	if isV6 {
		st.pc6 = ipv6.NewPacketConn(conn)
		if err := st.pc6.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
			return nil, fmt.Errorf("evcore: enable ipv6 control messages: %w", err)
		}
	} else {
		st.pc4 = ipv4.NewPacketConn(conn)
		if err := st.pc4.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
			return nil, fmt.Errorf("evcore: enable ipv4 control messages: %w", err)
		}
	}

	cp := &CommPoint{
		Role:       RoleUDPAncil,
		fd:         fd,
		base:       base,
		logger:     base.Logger(),
		buf:        NewBuffer(bufCap),
		callback:   cb,
		arg:        arg,
		doNotClose: true,
		udpAncil:   st,
	}
	cp.replyInfo.cp = cp
	if err := cp.registerRead(); err != nil {
		return nil, fmt.Errorf("evcore: udp-ancil register: %w", err)
	}
	return cp, nil
}

func isTemporaryNetErr(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR)
}

func (cp *CommPoint) onUDPAncilReadable() {
	st := cp.udpAncil
	for i := 0; i < NumUDPPerSelect; i++ {
		cp.buf.Clear()

		var n int
		var addr net.Addr
		var err error
		srcType := 0
		var cm4 *ipv4.ControlMessage
		var cm6 *ipv6.ControlMessage

		if st.isV6 {
			var rcm *ipv6.ControlMessage
			n, rcm, addr, err = st.pc6.ReadFrom(cp.buf.data)
			if rcm != nil {
				cm6 = rcm
				srcType = 6
			}
		} else {
			var rcm *ipv4.ControlMessage
			n, rcm, addr, err = st.pc4.ReadFrom(cp.buf.data)
			if rcm != nil {
				cm4 = rcm
				srcType = 4
			}
		}
		if err != nil {
			if isTemporaryNetErr(err) {
				return
			}
			cp.logf().Warn("udp-ancil recv failed", "err", err)
			return
		}
		cp.buf.SetPosition(0)
		cp.buf.SetLimit(n)

		cp.replyInfo.Addr = addr
		cp.replyInfo.Len = n
		cp.replyInfo.SrcType = srcType
		cp.replyInfo.PktInfo4 = cm4
		cp.replyInfo.PktInfo6 = cm6

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
}

// sendUDPAncilReply restates the destination address/interface the
// datagram arrived on as the reply's source, so the kernel sends the
// reply out the same local address rather than letting routing pick one.
// When no pktinfo was captured (srctype 0 — e.g. the kernel didn't
// deliver one for this datagram), an empty control message is passed and
// the kernel picks the default route, matching the fallback unbound takes
// for the same condition.
func (cp *CommPoint) sendUDPAncilReply(r *ReplyInfo) {
	st := cp.udpAncil
	data := cp.buf.Window()
	if st.isV6 {
		out := &ipv6.ControlMessage{}
		if r.SrcType == 6 && r.PktInfo6 != nil {
			out.Src = r.PktInfo6.Dst
			out.IfIndex = r.PktInfo6.IfIndex
		}
		if _, err := st.pc6.WriteTo(data, out, r.Addr); err != nil {
			cp.logf().Warn("udp-ancil send failed", "err", err)
		}
		return
	}
	out := &ipv4.ControlMessage{}
	if r.SrcType == 4 && r.PktInfo4 != nil {
		out.Src = r.PktInfo4.Dst
		out.IfIndex = r.PktInfo4.IfIndex
	}
	if _, err := st.pc4.WriteTo(data, out, r.Addr); err != nil {
		cp.logf().Warn("udp-ancil send failed", "err", err)
	}
}
