package evcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestCreateRaw_DeliversReadableAndTimeout confirms a RAW comm point gets
// every event handed straight to its callback: a readable byte on one end
// of a pipe, and (on a second comm point with nothing ever written to it)
// an eventual timeout.
func TestCreateRaw_DeliversReadableAndTimeout(t *testing.T) {
	base := newTestBase(t)

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	readFD, writeFD := fds[0], fds[1]
	t.Cleanup(func() {
		_ = unix.Close(writeFD)
	})

	readable := make(chan NetEvent, 1)
	_, err := CreateRaw(base, readFD, unix.EPOLLIN, 0, func(cp *CommPoint, _ any, event NetEvent, _ *ReplyInfo) bool {
		// The byte is never drained, so level-triggered epoll keeps
		// reporting it; a blocking send here would stall the loop
		// goroutine and keep the second comm point's timeout from firing.
		select {
		case readable <- event:
		default:
		}
		return true
	}, nil)
	require.NoError(t, err)

	idleR, idleW, err := pipeFDs()
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(idleW) })

	timedOut := make(chan NetEvent, 1)
	_, err = CreateRaw(base, idleR, unix.EPOLLIN, 15*time.Millisecond, func(cp *CommPoint, _ any, event NetEvent, _ *ReplyInfo) bool {
		timedOut <- event
		return true
	}, nil)
	require.NoError(t, err)

	stop := runDispatch(t, base)
	defer stop()

	_, err = unix.Write(writeFD, []byte{0x42})
	require.NoError(t, err)

	select {
	case event := <-readable:
		require.Equal(t, NetEventNoError, event)
	case <-time.After(2 * time.Second):
		t.Fatal("raw comm point never saw the readable byte")
	}

	select {
	case event := <-timedOut:
		require.Equal(t, NetEventTimeout, event)
	case <-time.After(2 * time.Second):
		t.Fatal("raw comm point's armed timeout never fired")
	}
}

func pipeFDs() (r int, w int, err error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}
