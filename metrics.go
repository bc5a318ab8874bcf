package serialbridge

import (
	"time"

	"go.uber.org/atomic"
)

// Metrics tracks per-port bridge statistics.
type Metrics struct {
	// Read direction
	ChunksRead    atomic.Int64 // Chunks delivered to the inbound channel
	BytesRead     atomic.Int64 // Total bytes read from the device
	EmptyReads    atomic.Int64 // Reads that returned no data and no error
	ReadErrors    atomic.Int64 // Device read failures (at most 1)
	InboundStalls atomic.Int64 // Reader found the inbound channel full
	LastReadTime  atomic.Int64 // Unix nano of last successful read

	// Write direction
	ChunksWritten     atomic.Int64 // Chunks fully flushed to the device
	BytesWritten      atomic.Int64 // Total bytes written to the device
	WriteCalls        atomic.Int64 // Physical Write calls, including retries
	ShortWrites       atomic.Int64 // Write calls that returned fewer bytes than asked
	WriteErrors       atomic.Int64 // Device write failures (at most 1)
	BackpressureWaits atomic.Int64 // WriteChunk found the outbound channel full
	TotalWriteTime    atomic.Int64 // Time spent flushing chunks (ns)
	MaxWriteTime      atomic.Int64 // Slowest chunk flush (ns)
	LastWriteTime     atomic.Int64 // Unix nano of last flushed chunk

	// Buffer Pool Metrics
	BufferPoolHits   atomic.Int64
	BufferPoolMisses atomic.Int64

	OpenedAt atomic.Int64 // Unix nano when the workers started
}

// HealthStatus represents the overall health of the port
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// MetricsSnapshot is a point-in-time copy of Metrics plus derived values.
type MetricsSnapshot struct {
	Timestamp    time.Time    `json:"timestamp"`
	Name         string       `json:"name"`
	State        string       `json:"state"`
	Reader       string       `json:"reader"`
	Writer       string       `json:"writer"`
	HealthStatus HealthStatus `json:"health_status"`

	ChunksRead    int64 `json:"chunks_read"`
	BytesRead     int64 `json:"bytes_read"`
	EmptyReads    int64 `json:"empty_reads"`
	ReadErrors    int64 `json:"read_errors"`
	InboundStalls int64 `json:"inbound_stalls"`

	ChunksWritten     int64 `json:"chunks_written"`
	BytesWritten      int64 `json:"bytes_written"`
	WriteCalls        int64 `json:"write_calls"`
	ShortWrites       int64 `json:"short_writes"`
	WriteErrors       int64 `json:"write_errors"`
	BackpressureWaits int64 `json:"backpressure_waits"`

	AverageWriteLatency time.Duration `json:"average_write_latency"`
	MaxWriteLatency     time.Duration `json:"max_write_latency"`
	BytesPerSecond      float64       `json:"bytes_per_second"`
	UptimeSeconds       float64       `json:"uptime_seconds"`
	BufferPoolHitRatio  float64       `json:"buffer_pool_hit_ratio"`

	InboundQueued  int `json:"inbound_queued"`
	OutboundQueued int `json:"outbound_queued"`
}

func (m *Metrics) recordRead(n int) {
	if n == 0 {
		m.EmptyReads.Inc()
		return
	}
	m.ChunksRead.Inc()
	m.BytesRead.Add(int64(n))
	m.LastReadTime.Store(time.Now().UnixNano())
}

func (m *Metrics) recordFlush(n int, duration time.Duration) {
	m.ChunksWritten.Inc()
	m.BytesWritten.Add(int64(n))
	m.LastWriteTime.Store(time.Now().UnixNano())
	m.TotalWriteTime.Add(duration.Nanoseconds())

	// Update max write time
	for {
		current := m.MaxWriteTime.Load()
		if duration.Nanoseconds() <= current {
			break
		}
		if m.MaxWriteTime.CompareAndSwap(current, duration.Nanoseconds()) {
			break
		}
	}
}

func (m *Metrics) calculateAverageWriteLatency() time.Duration {
	writes := m.ChunksWritten.Load()
	if writes == 0 {
		return 0
	}
	return time.Duration(m.TotalWriteTime.Load() / writes)
}

func (m *Metrics) calculateUptime(now time.Time) float64 {
	start := m.OpenedAt.Load()
	if start == 0 {
		return 0.0
	}
	duration := now.UnixNano() - start
	if duration <= 0 {
		return 0.0
	}
	return float64(duration) / float64(time.Second)
}

func (m *Metrics) calculateThroughput(now time.Time) float64 {
	seconds := m.calculateUptime(now)
	if seconds == 0 {
		return 0.0
	}
	return float64(m.BytesRead.Load()+m.BytesWritten.Load()) / seconds
}

func (m *Metrics) calculateBufferPoolHitRatio() float64 {
	total := m.BufferPoolHits.Load() + m.BufferPoolMisses.Load()
	if total == 0 {
		return 100.0
	}
	return float64(m.BufferPoolHits.Load()) / float64(total) * 100
}

// assessHealthStatus: down once the port leaves StateOpen, degraded while
// open with one direction already stopped.
func assessHealthStatus(state PortState, reader, writer WorkerStatus) HealthStatus {
	if state != StateOpen {
		return HealthStatusDown
	}
	if !reader.Running || !writer.Running {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}

func describeStatus(ws WorkerStatus) string {
	if ws.Running {
		return "running"
	}
	return "stopped: " + ws.Reason.String()
}
