package logger

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBufferPoolAllocReset(t *testing.T) {
	p := newBufferPool(4)
	require.Equal(t, 4, p.size())

	buf := p.Alloc()
	require.Equal(t, 3, p.size())
	require.Equal(t, 0, buf.Len())

	buf.Append([]byte("hello"))
	require.Equal(t, 5, buf.Len())

	p.Free(buf)
	require.Equal(t, 4, p.size())
}

func TestBufferPoolAllocOnEmptyNeverFails(t *testing.T) {
	p := newBufferPool(0)
	for i := 0; i < 10; i++ {
		buf := p.Alloc()
		require.NotNil(t, buf)
		require.Same(t, p, buf.pool)
	}
}

func TestBufferPoolFreeNilIsNoop(t *testing.T) {
	p := newBufferPool(1)
	require.NotPanics(t, func() { p.Free(nil) })
	require.Equal(t, 1, p.size())
}

func TestBufferPoolAllocBulkShortfallFallsBackToFresh(t *testing.T) {
	p := newBufferPool(2)
	bufs := p.AllocBulk(5)
	require.Len(t, bufs, 5)
	require.Equal(t, 0, p.size())
	for _, b := range bufs {
		require.Equal(t, 0, b.Len())
	}
}

func TestBufferPoolFreeBulkConservesCount(t *testing.T) {
	p := newBufferPool(10)
	bufs := p.AllocBulk(6)
	require.Equal(t, 4, p.size())
	p.FreeBulk(bufs)
	require.Equal(t, 10, p.size())
}

func TestProducerCacheGetRefillsFromPool(t *testing.T) {
	p := newBufferPool(100)
	pc := AcquireProducerCache(p, 8)
	defer pc.Release()

	before := p.size()
	buf := pc.Get()
	require.NotNil(t, buf)
	require.Less(t, p.size(), before)
}

func TestProducerCacheReleaseReturnsAllAndDisarms(t *testing.T) {
	p := newBufferPool(100)
	pc := AcquireProducerCache(p, 8)
	_ = pc.Get()
	_ = pc.Get()

	pc.Release()
	require.Equal(t, 100, p.size())

	// Release is idempotent.
	require.NotPanics(t, pc.Release)
}

func TestProducerCacheDistinctThreadHash(t *testing.T) {
	p := newBufferPool(10)
	a := AcquireProducerCache(p, 2)
	b := AcquireProducerCache(p, 2)
	defer a.Release()
	defer b.Release()
	require.NotEqual(t, a.ThreadHash, b.ThreadHash)
}

// TestProducerCacheFinalizerReclaims exercises the runtime.SetFinalizer
// fallback path: a cache dropped without an explicit Release must still
// return its buffers once the GC runs the finalizer.
func TestProducerCacheFinalizerReclaims(t *testing.T) {
	p := newBufferPool(20)
	func() {
		pc := AcquireProducerCache(p, 4)
		_ = pc.Get()
		_ = pc.Get()
	}()

	for i := 0; i < 5; i++ {
		runtime.GC()
		runtime.Gosched()
	}

	require.Eventually(t, func() bool {
		return p.size() == 20
	}, 2*time.Second, 10*time.Millisecond)
}
