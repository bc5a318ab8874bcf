package serialbridge

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// Metrics accessor and broadcasting methods for Port

// Metrics returns a snapshot of the port's counters.
func (p *Port) Metrics() MetricsSnapshot {
	return p.b.snapshot()
}

// BufferPoolStats returns buffer pool statistics for this port.
func (p *Port) BufferPoolStats() []PoolStats {
	return p.b.pools.GetAllPoolStats()
}

func (b *bridge) snapshot() MetricsSnapshot {
	now := time.Now()
	m := b.metrics
	state := b.currentState()
	reader := b.reader.snapshot()
	writer := b.writer.snapshot()

	return MetricsSnapshot{
		Timestamp:    now,
		Name:         b.opts.Name,
		State:        state.String(),
		Reader:       describeStatus(reader),
		Writer:       describeStatus(writer),
		HealthStatus: assessHealthStatus(state, reader, writer),

		ChunksRead:    m.ChunksRead.Load(),
		BytesRead:     m.BytesRead.Load(),
		EmptyReads:    m.EmptyReads.Load(),
		ReadErrors:    m.ReadErrors.Load(),
		InboundStalls: m.InboundStalls.Load(),

		ChunksWritten:     m.ChunksWritten.Load(),
		BytesWritten:      m.BytesWritten.Load(),
		WriteCalls:        m.WriteCalls.Load(),
		ShortWrites:       m.ShortWrites.Load(),
		WriteErrors:       m.WriteErrors.Load(),
		BackpressureWaits: m.BackpressureWaits.Load(),

		AverageWriteLatency: m.calculateAverageWriteLatency(),
		MaxWriteLatency:     time.Duration(m.MaxWriteTime.Load()),
		BytesPerSecond:      m.calculateThroughput(now),
		UptimeSeconds:       m.calculateUptime(now),
		BufferPoolHitRatio:  m.calculateBufferPoolHitRatio(),

		InboundQueued:  len(b.inbound),
		OutboundQueued: len(b.outbound),
	}
}

// metricsBroadcaster emits snapshots on a ticker until stopped.
type metricsBroadcaster struct {
	ch       chan MetricsSnapshot
	interval time.Duration
	enabled  atomic.Bool
}

func newMetricsBroadcaster(size int, interval time.Duration) *metricsBroadcaster {
	return &metricsBroadcaster{
		ch:       make(chan MetricsSnapshot, size),
		interval: interval,
	}
}

func (mb *metricsBroadcaster) start(ctx context.Context, b *bridge) {
	if !mb.enabled.CompareAndSwap(false, true) {
		return
	}
	ticker := time.NewTicker(mb.interval)

	go func() {
		defer ticker.Stop()
		defer close(mb.ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				// one final snapshot so watchers see the closed state
				mb.emit(b)
				return
			case <-ticker.C:
				mb.emit(b)
			}
		}
	}()
}

func (mb *metricsBroadcaster) emit(b *bridge) {
	// Non-blocking send; a slow watcher misses ticks rather than stalling us.
	select {
	case mb.ch <- b.snapshot():
	default:
	}
}

// WatchMetrics streams a snapshot every interval until ctx ends or the port
// finishes closing, then closes the channel. Snapshots are dropped while
// the consumer lags.
func (p *Port) WatchMetrics(ctx context.Context, interval time.Duration) <-chan MetricsSnapshot {
	if interval <= 0 {
		interval = time.Second
	}
	mb := newMetricsBroadcaster(8, interval)
	mb.start(ctx, p.b)
	return mb.ch
}
