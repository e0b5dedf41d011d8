package evcore

import (
	"sync"

	"github.com/jroosing/netevent/internal/pool"
)

// Buffer is a fixed-capacity byte region with a read/write cursor, modeled
// on the position/limit/capacity window a comm point's I/O buffer names.
// It is deliberately not bytes.Buffer: comm points need to reuse a
// single fixed-size allocation across many partial, non-blocking reads and
// writes, then hand the exact [position, limit) window to a callback
// without copying.
//
// Usage follows the same read/write-mode discipline as Java's
// java.nio.ByteBuffer: Clear() prepares the region for filling (position 0,
// limit at capacity); Flip() switches a filled region to draining mode
// (limit becomes the old position, position resets to 0).
type Buffer struct {
	data     []byte
	position int
	limit    int
	pool     *pool.Pool[*[]byte]
}

// bufferPools caches one pool.Pool[*[]byte] per distinct capacity: comm
// points of the same role and bufCap (the common case — every TCP handler
// in a pool, every UDP comm point bound with the same flag default) share
// a free-list of backing arrays instead of each allocating and discarding
// its own, the usual sync.Pool-per-size-class idiom.
var bufferPools sync.Map // map[int]*pool.Pool[*[]byte]

func bufferPoolFor(capacity int) *pool.Pool[*[]byte] {
	if v, ok := bufferPools.Load(capacity); ok {
		return v.(*pool.Pool[*[]byte]) //nolint:forcetypeassert // only this function stores into bufferPools
	}
	created := pool.New(func() *[]byte {
		buf := make([]byte, capacity)
		return &buf
	})
	actual, _ := bufferPools.LoadOrStore(capacity, created)
	return actual.(*pool.Pool[*[]byte]) //nolint:forcetypeassert // only this function stores into bufferPools
}

// NewBuffer obtains a Buffer backed by a capacity-keyed pooled array,
// ready for filling (Clear'd). Call Release when the comm point owning it
// is torn down so the array can be reused by a future NewBuffer of the
// same capacity.
func NewBuffer(capacity int) *Buffer {
	p := bufferPoolFor(capacity)
	data := p.Get()
	b := &Buffer{data: *data, pool: p}
	b.Clear()
	return b
}

// Release returns the buffer's backing array to the pool it came from.
// The Buffer must not be used again afterward.
func (b *Buffer) Release() {
	if b.pool == nil {
		return
	}
	data := b.data
	b.pool.Put(&data)
	b.data = nil
	b.pool = nil
}

// Capacity returns the total size of the underlying allocation.
func (b *Buffer) Capacity() int { return len(b.data) }

// Position returns the current cursor offset.
func (b *Buffer) Position() int { return b.position }

// SetPosition moves the cursor. It panics if pos is out of [0, limit].
func (b *Buffer) SetPosition(pos int) {
	if pos < 0 || pos > b.limit {
		panic(ErrInvariant)
	}
	b.position = pos
}

// Limit returns the current limit.
func (b *Buffer) Limit() int { return b.limit }

// SetLimit moves the limit. It panics if limit is out of [0, capacity].
func (b *Buffer) SetLimit(limit int) {
	if limit < 0 || limit > len(b.data) {
		panic(ErrInvariant)
	}
	b.limit = limit
	if b.position > b.limit {
		b.position = b.limit
	}
}

// Remaining returns how many bytes lie between position and limit.
func (b *Buffer) Remaining() int { return b.limit - b.position }

// Clear resets the buffer to full-capacity filling mode: position 0,
// limit at capacity.
func (b *Buffer) Clear() {
	b.position = 0
	b.limit = len(b.data)
}

// Flip switches the buffer from filling mode to draining mode: the bytes
// written so far ([0, position)) become the readable window.
func (b *Buffer) Flip() {
	b.limit = b.position
	b.position = 0
}

// Window returns the live [position, limit) slice. The slice aliases the
// buffer's backing array; callers must not retain it past the next Clear,
// SetLimit, or SetPosition call.
func (b *Buffer) Window() []byte {
	return b.data[b.position:b.limit]
}

// Advance moves position forward by n, as if n bytes were just
// read into or written out of the window returned by Window.
func (b *Buffer) Advance(n int) {
	b.SetPosition(b.position + n)
}

// Bytes returns the full backing array up to the current limit, starting
// at 0 rather than position. Used when a caller wants the whole received
// or to-be-sent region regardless of cursor.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.limit]
}
