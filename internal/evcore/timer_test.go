package evcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_SetArmsUntilFire(t *testing.T) {
	b := &Base{}
	var fired int
	tm := NewTimer(b, func(any) { fired++ }, nil)

	assert.False(t, tm.IsSet())
	tm.Set(10 * time.Millisecond)
	assert.True(t, tm.IsSet())

	b.fireExpiredTimeouts(time.Now().Add(time.Hour))
	assert.Equal(t, 1, fired)
	assert.False(t, tm.IsSet(), "IsSet must go false once the callback has run")
}

func TestTimer_DisableCancelsPendingFire(t *testing.T) {
	b := &Base{}
	var fired int
	tm := NewTimer(b, func(any) { fired++ }, nil)

	tm.Set(10 * time.Millisecond)
	tm.Disable()
	assert.False(t, tm.IsSet())

	b.fireExpiredTimeouts(time.Now().Add(time.Hour))
	assert.Equal(t, 0, fired, "a disabled timer must not invoke its callback")
}

func TestTimer_SetTwiceOnlyLatestFires(t *testing.T) {
	b := &Base{}
	var fired []string
	tm := NewTimer(b, func(arg any) { fired = append(fired, arg.(string)) }, "first")

	tm.Set(5 * time.Millisecond)
	tm.arg = "second"
	tm.Set(10 * time.Millisecond) // re-Set before the first fires supersedes it

	b.fireExpiredTimeouts(time.Now().Add(time.Hour))
	assert.Equal(t, []string{"second"}, fired, "re-arming must disable the previous arming, not stack a second fire")
}

func TestTimer_DeleteIsDisable(t *testing.T) {
	b := &Base{}
	tm := NewTimer(b, func(any) {}, nil)
	tm.Set(time.Second)
	tm.Delete()
	assert.False(t, tm.IsSet())
}
