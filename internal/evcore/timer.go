package evcore

import "time"

// Timer is a one-shot timeout bound into the loop's timeout wheel.
// IsSet is true from Set until Disable is called or the timer
// fires (exclusive): the callback observes IsSet already false by the
// time it runs.
type Timer struct {
	base *Base
	cb   func(arg any)
	arg  any

	seq   uint64
	armed bool
}

// NewTimer creates a disabled Timer bound to base. Call Set to arm it.
func NewTimer(base *Base, cb func(arg any), arg any) *Timer {
	return &Timer{base: base, cb: cb, arg: arg}
}

// Set arms (or re-arms) the timer to fire after d. Calling Set on an
// already-armed timer implicitly disables the previous arming before
// installing the new one; the effect is identical to Disable followed by
// Set, achieved here by bumping the sequence number the fire closure
// checks instead of walking the heap to remove the old entry.
func (t *Timer) Set(d time.Duration) {
	t.seq++
	t.armed = true
	mySeq := t.seq
	t.base.armTimeout(d, func() {
		if !t.armed || t.seq != mySeq {
			return
		}
		t.armed = false
		t.cb(t.arg)
	})
}

// Disable cancels a pending Set. It is a no-op if the timer is not armed
// or has already fired.
func (t *Timer) Disable() {
	t.armed = false
	t.seq++
}

// IsSet reports whether the timer is currently armed and has not yet
// fired.
func (t *Timer) IsSet() bool { return t.armed }

// Delete disables the timer. Provided for symmetry with CommPoint.Delete;
// the Timer itself holds no OS resources.
func (t *Timer) Delete() { t.Disable() }
