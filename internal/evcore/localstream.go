package evcore

import "fmt"

// CreateLocalStream registers fd (an already-connected local control
// channel, e.g. a Unix domain socket accepted elsewhere) as a
// LOCAL-STREAM comm point. It reuses the same length-prefix
// framing state machine as TCP-HANDLER but suppresses the 12-byte DNS
// header minimum (shortOK) and never transitions to a write phase of its
// own: replies on this channel, if any, are written by the owner outside
// this comm point's state machine, and the comm point loops straight back
// to reading the next framed message after each callback invocation.
func CreateLocalStream(base *Base, fd int, bufCap int, cb Callback, arg any) (*CommPoint, error) {
	cp := &CommPoint{
		Role:     RoleLocalStream,
		fd:       fd,
		base:     base,
		logger:   base.Logger(),
		buf:      NewBuffer(bufCap),
		callback: cb,
		arg:      arg,
		tcp:      &tcpFraming{isReading: true, shortOK: true},
	}
	if err := cp.registerRead(); err != nil {
		return nil, fmt.Errorf("evcore: local-stream register: %w", err)
	}
	return cp, nil
}
