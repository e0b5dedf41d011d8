// Package evcore is the network event core of a recursive DNS resolver: it
// multiplexes UDP and TCP sockets, signals, and timers onto a single
// epoll-backed event loop, drives the DNS-over-TCP length-prefix framing
// state machine, and dispatches received datagrams/streams to an
// application callback that may synchronously produce a reply.
//
// Goroutine Model:
//
// A Base owns exactly one OS readiness loop and runs on exactly one
// goroutine for its lifetime (Dispatch blocks that goroutine until Exit is
// called or a fatal readiness-layer error occurs). Every CommPoint, Timer,
// and SignalSet registered against a Base is driven from that same
// goroutine; callbacks must not block. A process that wants parallelism
// runs one Base per goroutine, each with its own sockets — comm points are
// never shared across bases.
//
// Error Handling:
//
// Transport errors (EAGAIN, ECONNRESET, timeouts, ...) are classified into
// one of a small set of outcomes and surfaced to the callback as a
// NetEvent; they never panic. Invariant violations (operating on a comm
// point in the wrong role, re-arming a closed comm point, ...) panic, since they indicate a
// programming error in the embedding application rather than a condition
// the loop can recover from. Errors returned from constructors are wrapped
// with fmt.Errorf("...: %w", err).
package evcore
