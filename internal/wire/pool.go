package wire

import "sync"

// bufPool recycles the header+extras+key buffers Encode builds for
// every response: a sync.Pool of byte slices reset to zero length on
// return, so repeated small-message traffic doesn't churn the
// allocator. A request larger than the pooled slice gets a fresh
// allocation, and slices over 64 KiB are not returned to the pool.
type bufPool struct {
	pool sync.Pool
}

func newBufPool() *bufPool {
	return &bufPool{
		pool: sync.Pool{
			New: func() any {
				return make([]byte, 0, headerLen+64)
			},
		},
	}
}

func (p *bufPool) get(size int) []byte {
	buf := p.pool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

func (p *bufPool) put(buf []byte) {
	if cap(buf) <= 64*1024 {
		p.pool.Put(buf[:0])
	}
}

var headPool = newBufPool()
