// Command netevent-demo wires one Base to a UDP (or UDP-ancillary) comm
// point and one TCP accept point, both driven by the same toy DNS-header
// callback, to exercise the whole evcore package end to end the way
// cmd/hydradns wires config, resolver, and server together for the real
// product. It understands nothing about DNS message semantics beyond the
// fixed 12-byte header layout: a query with no question section is answered
// SERVFAIL, anything else is echoed back with the response bit set.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/jroosing/netevent/internal/evcore"
	"github.com/jroosing/netevent/internal/logging"
)

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	addr        string
	numHandlers int
	bufSize     int
	ancil       bool
	jsonLogs    bool
	debug       bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.addr, "addr", "127.0.0.1:8053", "UDP/TCP bind address")
	flag.IntVar(&f.numHandlers, "tcp-handlers", 16, "preallocated TCP handler pool size")
	flag.IntVar(&f.bufSize, "bufsize", 4096, "per-connection/datagram buffer capacity")
	flag.BoolVar(&f.ancil, "ancil", false, "use UDP-ANCIL (IP_PKTINFO source-address pinning) instead of plain UDP")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "enable JSON structured logging")
	flag.BoolVar(&f.debug, "debug", false, "enable debug logging")
	flag.Parse()
	return f
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := parseFlags()

	level := "INFO"
	if flags.debug {
		level = "DEBUG"
	}
	logger := logging.Configure(logging.Config{
		Level:            level,
		Structured:       flags.jsonLogs,
		StructuredFormat: "json",
		IncludePID:       true,
	})
	logger.Info("netevent-demo starting", "addr", flags.addr, "tcp_handlers", flags.numHandlers, "ancil", flags.ancil)

	base, err := evcore.NewBase(logger)
	if err != nil {
		return fmt.Errorf("new base: %w", err)
	}
	defer base.Close()

	if err := wireUDP(base, flags); err != nil {
		return err
	}
	if err := wireTCP(base, flags); err != nil {
		return err
	}

	base.Signals().Bind(os.Interrupt, func(os.Signal) {
		logger.Info("shutting down on interrupt")
		base.Exit()
	})
	base.Signals().Bind(syscall.SIGTERM, func(os.Signal) {
		logger.Info("shutting down on SIGTERM")
		base.Exit()
	})

	if err := base.Dispatch(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	snap := base.Stats.Snapshot()
	logger.Info("netevent-demo stopped",
		"udp_received", snap.UDPReceived,
		"udp_sent", snap.UDPSent,
		"tcp_accepted", snap.TCPAccepted,
		"tcp_completed", snap.TCPCompleted,
		"tcp_timed_out", snap.TCPTimedOut,
		"tcp_dropped", snap.TCPDropped,
		"pool_exhausted", snap.PoolExhausted,
	)
	return nil
}

func wireUDP(base *evcore.Base, flags cliFlags) error {
	if flags.ancil {
		conn, err := evcore.ListenUDPConn(flags.addr)
		if err != nil {
			return fmt.Errorf("listen udp-ancil: %w", err)
		}
		if _, err := evcore.CreateUDPAncil(base, conn, flags.bufSize, dnsHeaderEcho, nil); err != nil {
			return fmt.Errorf("create udp-ancil: %w", err)
		}
		return nil
	}
	fd, _, err := evcore.ListenUDPFD(flags.addr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	if _, err := evcore.CreateUDP(base, fd, flags.bufSize, dnsHeaderEcho, nil); err != nil {
		return fmt.Errorf("create udp: %w", err)
	}
	return nil
}

func wireTCP(base *evcore.Base, flags cliFlags) error {
	fd, _, err := evcore.ListenTCPFD(flags.addr)
	if err != nil {
		return fmt.Errorf("listen tcp: %w", err)
	}
	if _, err := evcore.CreateTCP(base, fd, flags.numHandlers, flags.bufSize, 120*time.Second, dnsHeaderEcho, nil); err != nil {
		return fmt.Errorf("create tcp: %w", err)
	}
	return nil
}

const (
	dnsHeaderSize  = 12
	flagsHiOffset  = 2
	flagsLoOffset  = 3
	qdCountOffset  = 4
	qrBit          = 0x80
	rcodeMask      = 0x0f
	rcodeServFail  = 0x02
)

// dnsHeaderEcho is the demo's Callback: it treats the received bytes as a
// fixed DNS header plus opaque trailer, turns the query into a response by
// setting the QR bit, and answers SERVFAIL for anything whose question
// count is zero (this core never parses DNS messages; it can only make
// this one structural judgment against the opaque buffer it's handed).
func dnsHeaderEcho(cp *evcore.CommPoint, _ any, event evcore.NetEvent, _ *evcore.ReplyInfo) bool {
	if event != evcore.NetEventNoError {
		return false
	}
	buf := cp.Buffer()
	n := buf.Limit()
	if n < dnsHeaderSize {
		return false
	}
	data := buf.Bytes()
	qdcount := binary.BigEndian.Uint16(data[qdCountOffset : qdCountOffset+2])
	data[flagsHiOffset] |= qrBit
	if qdcount == 0 {
		data[flagsLoOffset] = (data[flagsLoOffset] &^ rcodeMask) | rcodeServFail
		buf.SetLimit(dnsHeaderSize)
	} else {
		buf.SetLimit(n)
	}
	return true
}
