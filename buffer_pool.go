package serialbridge

import (
	"sync"

	"go.uber.org/atomic"
)

// BufferPool manages reusable byte buffers of one fixed size.
type BufferPool struct {
	pool sync.Pool
	size int
	// Metrics for monitoring pool efficiency
	gets    atomic.Int64
	puts    atomic.Int64
	creates atomic.Int64
}

// NewBufferPool creates a buffer pool with fixed-size buffers
func NewBufferPool(bufferSize int) *BufferPool {
	bp := &BufferPool{
		size: bufferSize,
	}
	bp.pool = sync.Pool{
		New: func() interface{} {
			bp.creates.Inc()
			return make([]byte, bufferSize)
		},
	}
	return bp
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() []byte {
	bp.gets.Inc()
	return bp.pool.Get().([]byte)
}

// Put returns a buffer to the pool (clears it first)
func (bp *BufferPool) Put(buf []byte) {
	if len(buf) != bp.size {
		return // Don't pool incorrectly sized buffers
	}
	bp.puts.Inc()

	clear(buf)
	bp.pool.Put(buf)
}

// Stats returns pool usage statistics
func (bp *BufferPool) Stats() PoolStats {
	return PoolStats{
		Size:    bp.size,
		Gets:    bp.gets.Load(),
		Puts:    bp.puts.Load(),
		Creates: bp.creates.Load(),
	}
}

// PoolStats contains buffer pool usage statistics
type PoolStats struct {
	Size    int   `json:"size"`    // Buffer size managed by this pool
	Gets    int64 `json:"gets"`    // Number of Get() calls
	Puts    int64 `json:"puts"`    // Number of Put() calls
	Creates int64 `json:"creates"` // Number of new buffers created
}

// HitRatio returns the cache hit ratio (0.0 to 1.0)
func (ps PoolStats) HitRatio() float64 {
	if ps.Gets == 0 {
		return 0.0
	}
	return 1.0 - (float64(ps.Creates) / float64(ps.Gets))
}

// BufferPoolManager hands out size-classed buffers for one port: read
// buffers for the reader and outbound chunk copies for WriteChunk.
type BufferPoolManager struct {
	smallPool  *BufferPool // 256 bytes
	mediumPool *BufferPool // 1024 bytes
	largePool  *BufferPool // 4096 bytes
	metrics    *Metrics
}

// NewBufferPoolManager creates a new buffer pool manager. metrics may be nil.
func NewBufferPoolManager(metrics *Metrics) *BufferPoolManager {
	return &BufferPoolManager{
		smallPool:  NewBufferPool(256),
		mediumPool: NewBufferPool(1024),
		largePool:  NewBufferPool(4096),
		metrics:    metrics,
	}
}

// GetPooledBuffer returns a buffer of exactly size bytes and the func that
// gives it back. Sizes above the largest class are allocated directly and
// their release func is a no-op.
func (bpm *BufferPoolManager) GetPooledBuffer(size int) ([]byte, func()) {
	var pool *BufferPool
	switch {
	case size <= 0:
		return []byte{}, func() {}
	case size <= 256:
		pool = bpm.smallPool
	case size <= 1024:
		pool = bpm.mediumPool
	case size <= 4096:
		pool = bpm.largePool
	}

	if pool == nil {
		if bpm.metrics != nil {
			bpm.metrics.BufferPoolMisses.Inc()
		}
		return make([]byte, size), func() {}
	}

	if bpm.metrics != nil {
		bpm.metrics.BufferPoolHits.Inc()
	}
	full := pool.Get()
	return full[:size], func() { pool.Put(full) }
}

// GetAllPoolStats returns statistics for all pools
func (bpm *BufferPoolManager) GetAllPoolStats() []PoolStats {
	return []PoolStats{
		bpm.smallPool.Stats(),
		bpm.mediumPool.Stats(),
		bpm.largePool.Stats(),
	}
}

// ResetPoolStats resets all pool statistics (useful for testing)
func (bpm *BufferPoolManager) ResetPoolStats() {
	for _, p := range []*BufferPool{bpm.smallPool, bpm.mediumPool, bpm.largePool} {
		p.gets.Store(0)
		p.puts.Store(0)
		p.creates.Store(0)
	}
}
