package evcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestCommPoint_StopStartListeningRoundTrip confirms the spec's round-trip
// property: StopListening followed by StartListening(-1, 0) restores the
// original event mask and resumes delivery, without changing the comm
// point's role. A RAW comm point over a pipe is the simplest way to
// observe registration state directly, the same technique
// TestCreateRaw_DeliversReadableAndTimeout uses.
func TestCommPoint_StopStartListeningRoundTrip(t *testing.T) {
	base := newTestBase(t)

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	readFD, writeFD := fds[0], fds[1]
	t.Cleanup(func() { _ = unix.Close(writeFD) })

	events := make(chan struct{}, 4)
	cp, err := CreateRaw(base, readFD, unix.EPOLLIN, 0, func(*CommPoint, any, NetEvent, *ReplyInfo) bool {
		// Level-triggered epoll repeats the event while a byte is pending;
		// a blocking send would stall the loop goroutine once the channel
		// fills.
		select {
		case events <- struct{}{}:
		default:
		}
		return true
	}, nil)
	require.NoError(t, err)

	require.True(t, cp.registered)
	originalEvents := cp.regEvents
	assert.Equal(t, uint32(unix.EPOLLIN), originalEvents)
	assert.Equal(t, RoleRaw, cp.Role)

	stop := runDispatch(t, base)
	defer stop()

	_, err = unix.Write(writeFD, []byte{1})
	require.NoError(t, err)
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("raw comm point never saw the first byte")
	}
	var drainBuf [1]byte
	_, _ = unix.Read(readFD, drainBuf[:])

	require.NoError(t, cp.StopListening())
	assert.False(t, cp.registered, "StopListening must deregister from the poller")
	assert.Equal(t, originalEvents, cp.regEvents,
		"StopListening must preserve the prior mask for StartListening to restore")
	assert.Equal(t, RoleRaw, cp.Role, "stop/start listening must never change the comm point's role")

	// Discard the repeats queued while the first byte was still pending.
	for len(events) > 0 {
		<-events
	}

	_, err = unix.Write(writeFD, []byte{2})
	require.NoError(t, err)
	select {
	case <-events:
		t.Fatal("a stopped comm point must not deliver events")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, cp.StartListening(-1, 0))
	assert.True(t, cp.registered, "StartListening must re-register with the poller")
	assert.Equal(t, originalEvents, cp.regEvents,
		"StartListening(-1, 0) must restore the original event mask")

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("restarted comm point never redelivered the pending byte")
	}
}
