package evcore

import "time"

const (
	// NumUDPPerSelect bounds how many datagrams a single UDP (or
	// UDP-ANCIL) readable event will drain in one call before yielding
	// back to the dispatch loop.
	NumUDPPerSelect = 100

	// MinDNSMessageSize is the smallest length a TCP-framed message body
	// may declare (a 12-byte DNS header) before the reading side treats
	// the connection as malformed and drops it. LOCAL-STREAM comm points
	// suppress this check.
	MinDNSMessageSize = 12

	// DefaultTCPQueryTimeout is the idle timeout CreateTCP arms on a
	// freshly accepted TCP handler when it is given no timeout of its own,
	// and the timeout SendReply arms when a TCP reply's write phase
	// begins.
	DefaultTCPQueryTimeout = 120 * time.Second

	// DefaultTCPConnectTimeout is the timeout Connect arms on a
	// TCP-OUTBOUND comm point when given none. It is armed once and bounds
	// the whole connect, write and read cycle, after which the comm point
	// is closed with NetEventTimeout.
	DefaultTCPConnectTimeout = 10 * time.Second
)
