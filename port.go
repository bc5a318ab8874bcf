package serialbridge

import (
	"context"
	"fmt"
	"runtime"
)

// Client is the channel-backed view of a serial device.
type Client interface {
	// ReadChunk returns the next chunk read from the device.
	ReadChunk(ctx context.Context) ([]byte, error)

	// WriteChunk queues b for transmission. It returns once the bytes are
	// queued, not once they reached the device.
	WriteChunk(ctx context.Context, b []byte) error

	// Close stops both workers and waits for them. It is safe to call
	// multiple times.
	Close() error
}

// Port bridges a blocking Handle to goroutine-friendly reads and writes.
// One goroutine blocks in device reads, another in device writes; callers
// only ever wait on channels.
//
// Port also implements io.ReadWriteCloser.
type Port struct {
	b       *bridge
	cleanup runtime.Cleanup

	// readSem serializes the io.Reader path, which may hold back the tail
	// of a chunk in pending.
	readSem chan struct{}
	pending []byte
}

var _ Client = (*Port)(nil)

// NewPort takes ownership of h, starts the reader and writer workers and
// returns the Port driving them. If h implements Duplicator the writer gets
// its own duplicate; otherwise h must tolerate one concurrent Read and one
// concurrent Write.
//
// Only Close guarantees the workers have exited. A Port that is dropped
// without Close is shut down in the background after it is collected.
func NewPort(h Handle, opts Options) (*Port, error) {
	if h == nil {
		return nil, ErrNilHandle
	}
	if err := ValidateOptions(&opts); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	rd, wr, distinct, err := split(h)
	if err != nil {
		return nil, fmt.Errorf("duplicating device handle: %w", err)
	}

	b := newBridge(opts, rd, wr, distinct)
	b.start()

	p := &Port{
		b:       b,
		readSem: make(chan struct{}, 1),
	}
	p.cleanup = runtime.AddCleanup(p, func(b *bridge) {
		// Cleanups must not block; the teardown finishes on its own.
		go b.close(ReasonChannelClosed)
	}, b)
	return p, nil
}

// ReadChunk implements Client. It returns ErrPortClosed once the port is
// closed and a *DeviceError if the device read failed. Chunks already
// queued when the reader stopped are returned first.
func (p *Port) ReadChunk(ctx context.Context) ([]byte, error) {
	if err := p.acquireRead(ctx); err != nil {
		return nil, err
	}
	defer p.releaseRead()

	if p.b.closed.Load() {
		return nil, ErrPortClosed
	}
	if len(p.pending) > 0 {
		chunk := p.pending
		p.pending = nil
		return chunk, nil
	}
	return p.b.recv(ctx)
}

// WriteChunk implements Client. A cancelled call has either queued all of
// b (nil error) or none of it. Empty writes are no-ops.
func (p *Port) WriteChunk(ctx context.Context, b []byte) error {
	if len(b) == 0 {
		if p.b.closed.Load() {
			return ErrPortClosed
		}
		return nil
	}
	return p.b.send(ctx, b)
}

// Read implements io.Reader. A chunk larger than b is handed out across
// several calls.
func (p *Port) Read(b []byte) (int, error) {
	if err := p.acquireRead(context.Background()); err != nil {
		return 0, err
	}
	defer p.releaseRead()

	if p.b.closed.Load() {
		return 0, ErrPortClosed
	}
	if len(b) == 0 {
		return 0, nil
	}
	if len(p.pending) == 0 {
		chunk, err := p.b.recv(context.Background())
		if err != nil {
			return 0, err
		}
		p.pending = chunk
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write implements io.Writer. Like WriteChunk it returns once b is queued.
func (p *Port) Write(b []byte) (int, error) {
	if err := p.WriteChunk(context.Background(), b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close implements Client. It always returns nil; failures to release the
// device handle are logged.
func (p *Port) Close() error {
	p.cleanup.Stop()
	p.b.close(ReasonRequestedShutdown)
	return nil
}

// Done is closed once Close (or the drop cleanup) has joined both workers.
func (p *Port) Done() <-chan struct{} {
	return p.b.done
}

// State reports where the port is in its open → closing → closed life.
func (p *Port) State() PortState {
	return p.b.currentState()
}

// ReaderStatus and WriterStatus report each worker's terminal status, or
// Running.
func (p *Port) ReaderStatus() WorkerStatus { return p.b.reader.snapshot() }
func (p *Port) WriterStatus() WorkerStatus { return p.b.writer.snapshot() }

// Name is the port name used in logs.
func (p *Port) Name() string {
	return p.b.opts.Name
}

func (p *Port) acquireRead(ctx context.Context) error {
	select {
	case p.readSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Port) releaseRead() {
	<-p.readSem
}
