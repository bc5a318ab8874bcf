package serialbridge

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Snapshot(t *testing.T) {
	dev := newStubDevice()
	p := newTestPort(t, dev, Options{Name: "rig"})

	writeChunk(t, p, "FA;")
	writeChunk(t, p, "IF;")
	require.Eventually(t, func() bool { return p.Metrics().ChunksWritten == 2 }, waitFor, tick)

	dev.push("FA00014074000;")
	readChunk(t, p)

	m := p.Metrics()
	assert.Equal(t, "rig", m.Name)
	assert.Equal(t, "open", m.State)
	assert.Equal(t, "running", m.Reader)
	assert.Equal(t, "running", m.Writer)
	assert.Equal(t, HealthStatusHealthy, m.HealthStatus)
	assert.Equal(t, int64(2), m.ChunksWritten)
	assert.Equal(t, int64(6), m.BytesWritten)
	assert.Equal(t, int64(1), m.ChunksRead)
	assert.Equal(t, int64(14), m.BytesRead)
	assert.Zero(t, m.ReadErrors)
	assert.Zero(t, m.WriteErrors)
	assert.Greater(t, m.UptimeSeconds, 0.0)
	assert.Greater(t, m.BufferPoolHitRatio, 0.0)
}

func TestMetrics_SnapshotMarshalsToJSON(t *testing.T) {
	dev := newStubDevice()
	p := newTestPort(t, dev, Options{Name: "rig"})

	data, err := json.Marshal(p.Metrics())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "rig", decoded["name"])
	assert.Equal(t, "healthy", decoded["health_status"])
	assert.Contains(t, decoded, "backpressure_waits")
}

func TestAssessHealthStatus(t *testing.T) {
	running := WorkerStatus{Running: true}
	stopped := WorkerStatus{Reason: ReasonDeviceError}

	assert.Equal(t, HealthStatusHealthy, assessHealthStatus(StateOpen, running, running))
	assert.Equal(t, HealthStatusDegraded, assessHealthStatus(StateOpen, stopped, running))
	assert.Equal(t, HealthStatusDegraded, assessHealthStatus(StateOpen, running, stopped))
	assert.Equal(t, HealthStatusDown, assessHealthStatus(StateClosing, running, running))
	assert.Equal(t, HealthStatusDown, assessHealthStatus(StateClosed, stopped, stopped))
}

func TestMetrics_RecordFlushTracksMax(t *testing.T) {
	m := &Metrics{}
	m.recordFlush(10, 3*time.Millisecond)
	m.recordFlush(10, 1*time.Millisecond)

	assert.Equal(t, int64(3*time.Millisecond), m.MaxWriteTime.Load())
	assert.Equal(t, 2*time.Millisecond, m.calculateAverageWriteLatency())
}

func TestWatchMetrics_ClosesAfterPortCloses(t *testing.T) {
	dev := newStubDevice()
	p, err := NewPort(dev, Options{})
	require.NoError(t, err)

	ch := p.WatchMetrics(context.Background(), 10*time.Millisecond)
	select {
	case snap := <-ch:
		assert.Equal(t, "open", snap.State)
	case <-time.After(waitFor):
		t.Fatal("no snapshot received")
	}

	require.NoError(t, p.Close())

	var last MetricsSnapshot
	timeout := time.After(waitFor)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				assert.Equal(t, "closed", last.State)
				assert.Equal(t, HealthStatusDown, last.HealthStatus)
				return
			}
			last = snap
		case <-timeout:
			t.Fatal("metrics channel never closed")
		}
	}
}

func TestWatchMetrics_StopsWithContext(t *testing.T) {
	dev := newStubDevice()
	p := newTestPort(t, dev, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := p.WatchMetrics(ctx, time.Hour)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("metrics channel not closed after cancel")
	}
}
