package evcore

// tcpPool is the preallocated arena of TCP-HANDLER comm points an
// accept point hands connections out of. Handlers are addressed by arena
// index rather than linked by pointer so the free-list
// is a plain stack of ints, with nothing for a reused handler to dangle a
// stale pointer into.
type tcpPool struct {
	handlers []*CommPoint
	free     []int
}

func newTCPPool(n int) *tcpPool {
	p := &tcpPool{
		handlers: make([]*CommPoint, n),
		free:     make([]int, 0, n),
	}
	for i := 0; i < n; i++ {
		p.free = append(p.free, n-1-i) // push in reverse so pop order is 0..n-1
	}
	return p
}

func (p *tcpPool) empty() bool { return len(p.free) == 0 }

func (p *tcpPool) pop() (*CommPoint, bool) {
	if p.empty() {
		return nil, false
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return p.handlers[idx], true
}

func (p *tcpPool) push(idx int) {
	p.free = append(p.free, idx)
}
