package evcore

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// CreateTCP registers listenFD as a TCP-ACCEPT comm point backed by a
// preallocated pool of numHandlers TCP-HANDLER comm points. Each accepted
// connection serves exactly one request/response cycle before its handler
// is reclaimed back to the pool; there is no multi-query keep-alive on an
// inbound connection.
func CreateTCP(base *Base, listenFD int, numHandlers int, bufCap int, timeout time.Duration, cb Callback, arg any) (*CommPoint, error) {
	if timeout <= 0 {
		timeout = DefaultTCPQueryTimeout
	}
	if err := unix.SetNonblock(listenFD, true); err != nil {
		return nil, fmt.Errorf("evcore: tcp accept set nonblock: %w", err)
	}

	accept := &CommPoint{
		Role:   RoleTCPAccept,
		fd:     listenFD,
		base:   base,
		logger: base.Logger(),
		accept: &acceptState{timeout: timeout},
	}

	pool := newTCPPool(numHandlers)
	accept.accept.pool = pool
	for i := 0; i < numHandlers; i++ {
		h := &CommPoint{
			Role:     RoleTCPHandler,
			fd:       -1,
			base:     base,
			logger:   base.Logger(),
			buf:      NewBuffer(bufCap),
			callback: cb,
			arg:      arg,
			tcp:      &tcpFraming{},
			handler:  &handlerState{parent: accept, poolIndex: i},
		}
		h.replyInfo.cp = h
		pool.handlers[i] = h
	}

	if err := accept.registerRead(); err != nil {
		return nil, fmt.Errorf("evcore: tcp accept register: %w", err)
	}
	return accept, nil
}

// onAcceptReadable accepts at most one connection per readable
// notification; level-triggered epoll re-fires immediately if more
// connections remain pending.
func (cp *CommPoint) onAcceptReadable() {
	pool := cp.accept.pool
	if pool.empty() {
		// Invariant 2 should make this unreachable: the accept fd is
		// deregistered the moment the pool empties. Defensive only.
		cp.logf().Warn("tcp accept readable with empty handler pool")
		cp.base.Stats.PoolExhausted.Add(1)
		return
	}

	nfd, sa, err := unix.Accept4(cp.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		switch err {
		case unix.EAGAIN, unix.EWOULDBLOCK, unix.EINTR, unix.ECONNABORTED, unix.EPROTO:
			return
		default:
			cp.logf().Warn("tcp accept failed", "err", err)
			return
		}
	}

	h, ok := pool.pop()
	if !ok {
		_ = unix.Close(nfd)
		cp.logf().Warn("tcp handler pool exhausted after pop race")
		return
	}

	h.fd = nfd
	h.generation++
	h.tcp.isReading = true
	h.tcp.byteCount = 0
	h.tcp.doToggleRW = false // each handler serves exactly one query
	h.tcp.checkNBConnect = false
	h.tcp.shortOK = false
	h.buf.Clear()
	h.replyInfo.Addr = sockaddrToTCPAddr(sa)
	cp.base.Stats.TCPAccepted.Add(1)

	if err := h.registerRead(); err != nil {
		cp.logf().Warn("tcp handler register failed", "err", err)
		h.Close()
		pool.push(h.handler.poolIndex)
		return
	}
	cp.base.armTimeoutFor(h, cp.accept.timeout)

	if pool.empty() {
		if err := cp.deregister(); err != nil {
			cp.logf().Warn("tcp accept pause failed", "err", err)
		}
	}
}

// reclaimHandler detaches h from the poller, closes its fd, and returns
// its slot to the free-list, resuming the accept point if the pool had
// been paused. If notify is true and the handler wasn't marked
// noCloseNotify, the callback is invoked with event before the slot is
// released.
func (cp *CommPoint) reclaimHandler(event NetEvent, notify bool) {
	cp.requireRole(RoleTCPHandler)
	_ = cp.deregister()
	if cp.fd >= 0 {
		_ = unix.Close(cp.fd)
		cp.fd = -1
	}
	cp.generation++

	switch event {
	case NetEventTimeout:
		cp.base.Stats.TCPTimedOut.Add(1)
	case NetEventClosed:
		cp.base.Stats.TCPDropped.Add(1)
	case NetEventNoError:
		cp.base.Stats.TCPCompleted.Add(1)
	}

	if notify && !cp.tcp.noCloseNotify {
		cp.callback(cp, cp.arg, event, nil)
	}

	parent := cp.handler.parent
	wasEmpty := parent.accept.pool.empty()
	parent.accept.pool.push(cp.handler.poolIndex)
	if wasEmpty {
		if err := parent.registerRead(); err != nil {
			parent.logf().Warn("tcp accept resume failed", "err", err)
		}
	}
}
