package pmtiles

import "sync"

// bufferPool hands out byte slices sized for directory and tile payload
// reads so repeated GetTile/directory-cache-miss calls don't each allocate
// fresh backing arrays. Buffers are only ever grown, never shrunk, so a
// pool that has served a large archive stays warm for later small ones too.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, 0, 4096)
				return &b
			},
		},
	}
}

func (p *bufferPool) get(size int) []byte {
	bp := p.pool.Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		b = make([]byte, size)
	} else {
		b = b[:size]
	}
	return b
}

func (p *bufferPool) put(b []byte) {
	b = b[:0]
	p.pool.Put(&b)
}
