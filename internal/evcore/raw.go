package evcore

import (
	"fmt"
	"time"
)

// CreateRaw registers fd under the RAW role. Unlike every other
// role it performs no read/write/framing of its own: every readable,
// writable, or timeout event on fd is handed straight to cb with a nil
// ReplyInfo, and the callback is responsible for doing its own I/O on
// cp.FD(). This is the escape hatch for comm points the other roles don't
// model — a raw control socket, an eventfd, anything the application
// wants multiplexed onto the same loop without the core's framing
// opinions.
//
// If timeout is positive it is armed immediately, so a RAW comm point can
// receive NetEventTimeout the same way every other role does; pass 0 for
// a comm point that should only ever see readable/writable events. Use
// ArmTimeout to rearm (or newly arm) a timeout later, e.g. after each
// event the callback handles.
func CreateRaw(base *Base, fd int, events uint32, timeout time.Duration, cb Callback, arg any) (*CommPoint, error) {
	cp := &CommPoint{
		Role:     RoleRaw,
		fd:       fd,
		base:     base,
		logger:   base.Logger(),
		callback: cb,
		arg:      arg,
	}
	if err := cp.arm(events); err != nil {
		return nil, fmt.Errorf("evcore: raw register: %w", err)
	}
	if timeout > 0 {
		base.armTimeoutFor(cp, timeout)
	}
	return cp, nil
}

// ArmTimeout schedules cp to receive NetEventTimeout via its callback if
// d elapses before the next event on its fd. Only valid on RAW comm
// points; every other role manages its own timeout internally as part of
// its framing state machine.
func (cp *CommPoint) ArmTimeout(d time.Duration) {
	cp.requireRole(RoleRaw)
	cp.base.armTimeoutFor(cp, d)
}
