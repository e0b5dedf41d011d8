package evcore

import "errors"

// NetEvent classifies the outcome passed to a CommPoint callback. Only
// NetEventNoError carries meaning in the callback's boolean return value
// (send vs. drop); the others are terminal notifications the callback may
// use for cleanup but cannot veto.
type NetEvent int

const (
	// NetEventNoError means a full request was received (or, for
	// TCP-OUTBOUND, a reply) and is ready in the comm point's buffer.
	NetEventNoError NetEvent = iota
	// NetEventClosed means the peer closed the connection, or a
	// transport error forced the comm point closed.
	NetEventClosed
	// NetEventTimeout means the armed timeout fired before the pending
	// operation completed.
	NetEventTimeout
)

func (e NetEvent) String() string {
	switch e {
	case NetEventNoError:
		return "no-error"
	case NetEventClosed:
		return "closed"
	case NetEventTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	// ErrInvariant is the panic value used when a caller violates a
	// CommPoint or Buffer invariant: operating on the wrong role,
	// registering a closed (negative) fd, moving a Buffer cursor or limit
	// out of range, and similar misuse.
	ErrInvariant = errors.New("evcore: invariant violation")

	// ErrClosed names an operation on a comm point that has already been
	// closed. No function in this package returns it; closing a comm
	// point twice is a no-op.
	ErrClosed = errors.New("evcore: comm point closed")

	// ErrPoolExhausted names a TCP accept point whose handler free-list
	// has no entries available. No function in this package returns it:
	// the accept path logs that condition and counts it in
	// Stats.PoolExhausted instead.
	ErrPoolExhausted = errors.New("evcore: tcp handler pool exhausted")

	// ErrShuttingDown names a registration attempted after Exit has been
	// requested on the owning Base. No function in this package returns
	// it; registration after Exit proceeds as usual.
	ErrShuttingDown = errors.New("evcore: base is shutting down")
)
