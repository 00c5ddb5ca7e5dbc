package logger

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// defaultBufferCap is the fixed capacity of every pooled buffer.
const defaultBufferCap = 4096

// Buffer is a fixed-capacity byte buffer. It is owned, at any instant, by
// exactly one of: the pool's free list, a ProducerCache, a producer during
// formatting, a Record in the queue, or the worker during dispatch. pool is
// a back-pointer so Free always returns the buffer to the structure that
// allocated it, never to an unrelated pool.
type Buffer struct {
	data []byte
	pool *bufferPool
}

// Len returns the current payload length.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the buffer's current payload.
func (b *Buffer) Bytes() []byte { return b.data }

// Reset truncates the payload to zero length without releasing capacity.
func (b *Buffer) Reset() { b.data = b.data[:0] }

// Append grows the payload, reallocating past defaultBufferCap if needed;
// buffers that outgrow their original capacity are simply heap buffers from
// then on and are still returned to the pool (spec.md's "growth is one-way").
func (b *Buffer) Append(p []byte) { b.data = append(b.data, p...) }

// bufferPool is a concurrent free-list of *Buffer seeded at construction
// with size buffers. On exhaustion it heap-allocates a fresh buffer; pool
// size only ever grows over a process lifetime, matching spec.md §4.1.
type bufferPool struct {
	mu   sync.Mutex
	free []*Buffer
}

// newBufferPool seeds a pool with size pre-allocated buffers.
func newBufferPool(size int) *bufferPool {
	p := &bufferPool{free: make([]*Buffer, 0, size)}
	for i := 0; i < size; i++ {
		p.free = append(p.free, p.newBuffer())
	}
	return p
}

func (p *bufferPool) newBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, defaultBufferCap), pool: p}
}

// Alloc never fails: it pops a free buffer, or heap-allocates one fresh.
func (p *bufferPool) Alloc() *Buffer {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return p.newBuffer()
	}
	buf := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()
	buf.data = buf.data[:0]
	return buf
}

// AllocBulk best-effort fetches up to n buffers in one locked section,
// falling back to fresh allocation for any shortfall so it never returns
// fewer than n.
func (p *bufferPool) AllocBulk(n int) []*Buffer {
	out := make([]*Buffer, 0, n)
	p.mu.Lock()
	avail := len(p.free)
	take := n
	if take > avail {
		take = avail
	}
	if take > 0 {
		out = append(out, p.free[avail-take:avail]...)
		p.free = p.free[:avail-take]
	}
	p.mu.Unlock()
	for len(out) < n {
		out = append(out, p.newBuffer())
	}
	for _, b := range out {
		b.data = b.data[:0]
	}
	return out
}

// Free returns one buffer to the pool; nil is a no-op.
func (p *bufferPool) Free(buf *Buffer) {
	if buf == nil {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, buf)
	p.mu.Unlock()
}

// FreeBulk returns many buffers in one locked section.
func (p *bufferPool) FreeBulk(bufs []*Buffer) {
	if len(bufs) == 0 {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, bufs...)
	p.mu.Unlock()
}

// size reports the current number of free buffers, for metrics only.
func (p *bufferPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// ProducerCache is a per-producer-handle cache layered over a bufferPool.
// Go has no stable thread-exit hook tied to a goroutine the way spec.md's
// source language does, so cleanup is driven by a runtime.SetFinalizer
// registered at acquisition time — the same idiom the teacher used for
// non-graceful logger shutdown, generalized here to buffer reclaim. Callers
// that can guarantee an explicit teardown point should still call Release
// to return buffers immediately and disarm the finalizer.
type ProducerCache struct {
	pool    *bufferPool
	bufs    []*Buffer
	refill  int
	mu      sync.Mutex
	drained bool

	// ThreadHash stands in for spec.md §3's "thread-id hash" field. Go has
	// no stable goroutine id, so each ProducerCache is assigned one from a
	// monotonic counter at acquisition time and hashed once with xxhash;
	// every Record built through this cache carries the same value, which
	// is all spec.md §5 requires ("records carry timestamps for downstream
	// sorting if needed" — the hash only needs to group a producer's
	// output, not name an OS thread).
	ThreadHash uint64
}

var producerSeq atomic.Uint64

// AcquireProducerCache lazily initializes on first Get. refill is the
// tls_buffer_count batch size pulled from the pool on each refill.
func AcquireProducerCache(pool *bufferPool, refill int) *ProducerCache {
	if refill < 1 {
		refill = 1
	}
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], producerSeq.Add(1))
	pc := &ProducerCache{
		pool:       pool,
		refill:     refill,
		ThreadHash: xxhash.Sum64(idBuf[:]),
	}
	runtime.SetFinalizer(pc, finalizeProducerCache)
	return pc
}

func finalizeProducerCache(pc *ProducerCache) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.drained {
		return
	}
	pc.pool.FreeBulk(pc.bufs)
	pc.bufs = nil
	pc.drained = true
}

// Get pops a buffer from the local cache, refilling from the pool on empty.
func (pc *ProducerCache) Get() *Buffer {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if len(pc.bufs) == 0 {
		pc.bufs = append(pc.bufs, pc.pool.AllocBulk(pc.refill)...)
	}
	n := len(pc.bufs)
	buf := pc.bufs[n-1]
	pc.bufs = pc.bufs[:n-1]
	return buf
}

// Release returns all cached buffers to the pool immediately and disarms
// the finalizer. Safe to call more than once.
func (pc *ProducerCache) Release() {
	pc.mu.Lock()
	if pc.drained {
		pc.mu.Unlock()
		return
	}
	bufs := pc.bufs
	pc.bufs = nil
	pc.drained = true
	pc.mu.Unlock()
	pc.pool.FreeBulk(bufs)
	runtime.SetFinalizer(pc, nil)
}
