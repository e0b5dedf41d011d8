package evcore

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// CreateUDP registers fd (already bound, not yet connected) as a UDP comm
// point. cb is invoked once per datagram with the
// peer address in reply.Addr; returning true sends reply.cp's buffer back
// to that peer via sendto, false drops it silently.
func CreateUDP(base *Base, fd int, bufCap int, cb Callback, arg any) (*CommPoint, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("evcore: udp set nonblock: %w", err)
	}
	cp := &CommPoint{
		Role:     RoleUDP,
		fd:       fd,
		base:     base,
		logger:   base.Logger(),
		buf:      NewBuffer(bufCap),
		callback: cb,
		arg:      arg,
	}
	cp.replyInfo.cp = cp
	if err := cp.registerRead(); err != nil {
		return nil, fmt.Errorf("evcore: udp register: %w", err)
	}
	return cp, nil
}

// onUDPReadable drains up to NumUDPPerSelect datagrams per wakeup,
// re-checking the comm point's fd identity after
// every callback invocation since the callback may have closed or reused
// it.
func (cp *CommPoint) onUDPReadable() {
	for i := 0; i < NumUDPPerSelect; i++ {
		cp.buf.Clear()
		n, from, err := unix.Recvfrom(cp.fd, cp.buf.data, 0)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				return
			}
			if err == unix.ENETUNREACH || err == unix.ECONNREFUSED {
				cp.logf().Debug("udp recv soft error", "err", err)
				return
			}
			cp.logf().Warn("udp recv failed", "err", err)
			return
		}
		cp.buf.SetPosition(0)
		cp.buf.SetLimit(n)
		cp.base.Stats.UDPReceived.Add(1)

		cp.replyInfo.Addr = sockaddrToUDPAddr(from)
		cp.replyInfo.Len = n

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

func (cp *CommPoint) sendUDPReply(r *ReplyInfo) {
	addr, _ := r.Addr.(*net.UDPAddr)
	if addr == nil {
		cp.logf().Warn("udp reply missing peer address")
		return
	}
	to, _ := netAddrToSockaddr(addr.IP, addr.Port)
	data := cp.buf.Window()
	if err := unix.Sendto(cp.fd, data, 0, to); err != nil {
		cp.logf().Warn("udp send failed", "err", err)
		return
	}
	cp.base.Stats.UDPSent.Add(1)
}
