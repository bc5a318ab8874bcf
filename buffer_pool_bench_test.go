package serialbridge

import (
	"context"
	"fmt"
	"os"
	"testing"
)

func TestGetPooledBuffer_SizeClasses(t *testing.T) {
	m := &Metrics{}
	bpm := NewBufferPoolManager(m)

	for _, size := range []int{1, 256, 257, 1024, 4096} {
		buf, release := bpm.GetPooledBuffer(size)
		if len(buf) != size {
			t.Fatalf("size=%d: got len %d", size, len(buf))
		}
		release()
	}
	if got := m.BufferPoolHits.Load(); got != 5 {
		t.Fatalf("expected 5 pool hits, got %d", got)
	}

	buf, release := bpm.GetPooledBuffer(MaxBufferSize)
	if len(buf) != MaxBufferSize {
		t.Fatalf("expected direct allocation of %d bytes, got %d", MaxBufferSize, len(buf))
	}
	release()
	if got := m.BufferPoolMisses.Load(); got != 1 {
		t.Fatalf("expected 1 pool miss, got %d", got)
	}

	buf, release = bpm.GetPooledBuffer(0)
	if len(buf) != 0 {
		t.Fatalf("expected empty buffer, got len %d", len(buf))
	}
	release()
}

func TestBufferPool_ReturnsClearedBuffers(t *testing.T) {
	bp := NewBufferPool(16)
	buf := bp.Get()
	copy(buf, "dirty")
	bp.Put(buf)

	// Wrong-sized buffers are never pooled.
	bp.Put(make([]byte, 8))

	stats := bp.Stats()
	if stats.Gets != 1 || stats.Puts != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	for i, c := range bp.Get() {
		if c != 0 {
			t.Fatalf("byte %d not cleared: %q", i, c)
		}
	}
}

func TestBufferPoolManager_ResetPoolStats(t *testing.T) {
	bpm := NewBufferPoolManager(nil)
	_, release := bpm.GetPooledBuffer(100)
	release()
	bpm.ResetPoolStats()
	for _, s := range bpm.GetAllPoolStats() {
		if s.Gets != 0 || s.Puts != 0 || s.Creates != 0 {
			t.Fatalf("pool %d not reset: %+v", s.Size, s)
		}
	}
}

// BenchmarkGetPooledBuffer measures buffer pool allocation performance
func BenchmarkGetPooledBuffer(b *testing.B) {
	bpm := NewBufferPoolManager(nil)
	sizes := []int{256, 1024, 4096}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Size%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				buf, release := bpm.GetPooledBuffer(size)
				_ = buf
				release()
			}
		})
	}
}

// BenchmarkDirectAllocation measures direct allocation performance for comparison
func BenchmarkDirectAllocation(b *testing.B) {
	sizes := []int{256, 1024, 4096}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Size%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				buf := make([]byte, size)
				_ = buf
			}
		})
	}
}

// discardDevice accepts every write and serves reads from a fixed frame.
// With no frame, reads block until Close.
type discardDevice struct {
	frame  []byte
	closed chan struct{}
}

func (d *discardDevice) Read(p []byte) (int, error) {
	if d.frame == nil {
		<-d.closed
	}
	select {
	case <-d.closed:
		return 0, os.ErrClosed
	default:
	}
	return copy(p, d.frame), nil
}

func (d *discardDevice) Write(p []byte) (int, error) { return len(p), nil }
func (d *discardDevice) Close() error {
	close(d.closed)
	return nil
}

// BenchmarkWriteChunk measures the enqueue path including the pooled copy.
func BenchmarkWriteChunk(b *testing.B) {
	for _, size := range []int{16, 256, 1024} {
		b.Run(fmt.Sprintf("Size%d", size), func(b *testing.B) {
			dev := &discardDevice{closed: make(chan struct{})}
			p, err := NewPort(dev, Options{OutboundDepth: 64})
			if err != nil {
				b.Fatal(err)
			}
			defer p.Close()

			data := make([]byte, size)
			ctx := context.Background()
			b.ReportAllocs()
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := p.WriteChunk(ctx, data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkReadChunk simulates a chatty device: reads never block.
func BenchmarkReadChunk(b *testing.B) {
	dev := &discardDevice{frame: []byte("FA00014074000;"), closed: make(chan struct{})}
	p, err := NewPort(dev, Options{InboundDepth: 64})
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.ReadChunk(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
