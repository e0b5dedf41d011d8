package evcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_SnapshotReflectsCounters(t *testing.T) {
	s := &Stats{}
	s.UDPReceived.Add(3)
	s.UDPSent.Add(2)
	s.TCPAccepted.Add(5)
	s.TCPCompleted.Add(4)
	s.TCPTimedOut.Add(1)
	s.TCPDropped.Add(1)
	s.PoolExhausted.Add(1)

	snap := s.Snapshot()
	assert.Equal(t, Snapshot{
		UDPReceived:   3,
		UDPSent:       2,
		TCPAccepted:   5,
		TCPCompleted:  4,
		TCPTimedOut:   1,
		TCPDropped:    1,
		PoolExhausted: 1,
	}, snap)
}

func TestStats_ZeroValueIsUsable(t *testing.T) {
	var s Stats
	assert.Equal(t, Snapshot{}, s.Snapshot())
}

func TestCommPoint_MemUsageIncludesBuffer(t *testing.T) {
	bare := &CommPoint{Role: RoleUDP}
	withBuf := &CommPoint{Role: RoleUDP, buf: NewBuffer(4096)}

	assert.Greater(t, withBuf.MemUsage(), bare.MemUsage())
	assert.GreaterOrEqual(t, withBuf.MemUsage()-bare.MemUsage(), 4096)
}

func TestCommPoint_MemUsageSumsPooledHandlers(t *testing.T) {
	pool := populatedPool(3)
	for _, h := range pool.handlers {
		h.buf = NewBuffer(512)
	}
	accept := &CommPoint{Role: RoleTCPAccept, accept: &acceptState{pool: pool}}

	total := accept.MemUsage()

	var sumHandlers int
	for _, h := range pool.handlers {
		sumHandlers += h.MemUsage()
	}
	assert.GreaterOrEqual(t, total, sumHandlers)
}
