// Package buffer pools the byte buffers that engines exchange with requests
// to carry response and upload data.
package buffer

import (
	"sync"
	"sync/atomic"
)

// Alignment is the granularity of buffer capacities. Buffers of sizes within
// the same multiple of Alignment share the pool.
const Alignment = 4096

type Buffer struct{ Data []byte }

func (buf *Buffer) Size() uint64 {
	return uint64(len(buf.Data))
}

// Pool recycles buffers. The zero value is ready to use.
type Pool struct {
	pool sync.Pool
	live atomic.Int64
}

// Get returns a buffer of length size, reusing a released buffer when one
// of sufficient capacity is available. The content of the buffer is
// unspecified.
func (p *Pool) Get(size uint64) *Buffer {
	p.live.Add(1)
	if b, _ := p.pool.Get().(*Buffer); b != nil {
		if size <= uint64(cap(b.Data)) {
			b.Data = b.Data[:size]
			return b
		}
		p.pool.Put(b)
	}
	return &Buffer{Data: make([]byte, size, Align(size, Alignment))}
}

// Put returns b to the pool. b must not be used after the call.
func (p *Pool) Put(b *Buffer) {
	if b != nil {
		p.live.Add(-1)
		p.pool.Put(b)
	}
}

// Live returns the number of buffers obtained from the pool and not yet
// returned to it.
func (p *Pool) Live() int64 {
	return p.live.Load()
}

// Release returns *buf to the pool and clears it, which makes repeated
// releases of the same reference no-ops.
func Release(buf **Buffer, pool *Pool) {
	if b := *buf; b != nil {
		*buf = nil
		pool.Put(b)
	}
}

func Align(size, to uint64) uint64 {
	if size == 0 {
		return to
	}
	return ((size + (to - 1)) / to) * to
}
