package serialbridge

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// outboundChunk is one queued write. release hands the pooled copy back
// once the writer is done with it.
type outboundChunk struct {
	data    []byte
	release func()
}

// bridge is everything the two workers share with the Port. The workers
// only ever reference the bridge, never the Port, so a dropped Port can be
// collected while they run.
type bridge struct {
	opts Options
	log  zerolog.Logger

	rd, wr   *half
	distinct bool

	inbound  chan []byte
	outbound chan outboundChunk

	reader *terminal
	writer *terminal

	// Senders hold sendMu for reading while they enqueue. shutdown takes it
	// for writing after closing stopSend, so close(outbound) never races a
	// send.
	sendMu   sync.RWMutex
	stopping bool
	stopSend chan struct{}

	quit     chan struct{} // tells the reader to stop
	cause    StopReason    // written before quit is closed
	stopOnce sync.Once
	rdErr    error // read-half release error when shutdown released it

	// readDrained latches once recv has reported the inbound side finished
	// after shutdown, so later calls cannot surface a straggling chunk.
	readDrained atomic.Bool

	closed   atomic.Bool // Close or drop began; no further operations
	forced   atomic.Bool // write half was closed under a busy writer
	state    atomic.Int32
	joinOnce sync.Once
	done     chan struct{}

	metrics *Metrics
	pools   *BufferPoolManager
}

func newBridge(opts Options, rd, wr *half, distinct bool) *bridge {
	m := &Metrics{}
	return &bridge{
		opts:     opts,
		log:      opts.Logger.With().Str("port", opts.Name).Logger(),
		rd:       rd,
		wr:       wr,
		distinct: distinct,
		inbound:  make(chan []byte, opts.InboundDepth),
		outbound: make(chan outboundChunk, opts.OutboundDepth),
		reader:   newTerminal(),
		writer:   newTerminal(),
		stopSend: make(chan struct{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		metrics:  m,
		pools:    NewBufferPoolManager(m),
	}
}

func (b *bridge) start() {
	b.metrics.OpenedAt.Store(time.Now().UnixNano())
	go b.readLoop()
	go b.writeLoop()
	b.log.Debug().
		Int("read_buffer", b.opts.ReadBufferSize).
		Int("inbound_depth", b.opts.InboundDepth).
		Int("outbound_depth", b.opts.OutboundDepth).
		Bool("duplicated_handle", b.distinct).
		Msg("bridge started")
}

func (b *bridge) currentState() PortState {
	return PortState(b.state.Load())
}

// shutdown stops both directions without waiting for them. It is safe to
// call from either worker and from any number of goroutines; the first
// cause wins.
func (b *bridge) shutdown(cause StopReason) {
	b.stopOnce.Do(func() {
		b.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		b.cause = cause
		close(b.quit)
		close(b.stopSend)

		b.sendMu.Lock()
		b.stopping = true
		close(b.outbound)
		b.sendMu.Unlock()

		if b.distinct {
			// The read half is the reader's alone; closing it only unblocks
			// a pending Read. join reports any error.
			b.rdErr = b.rd.release(false)
		}
		b.log.Debug().Stringer("cause", cause).Msg("shutdown signalled")
	})
}

// deviceFailed runs on the failing worker after it published its status.
func (b *bridge) deviceFailed(direction string, err error) {
	if b.opts.IndependentDirections {
		b.log.Warn().Err(err).Str("direction", direction).Msg("direction stopped, other direction keeps running")
		return
	}
	b.log.Warn().Err(err).Str("direction", direction).Msg("device failure, shutting port down")
	b.shutdown(ReasonRequestedShutdown)
}

// close is the full teardown behind Port.Close and the drop cleanup.
// Concurrent callers all return once the teardown has completed.
func (b *bridge) close(cause StopReason) {
	b.closed.Store(true)
	b.shutdown(cause)
	b.joinOnce.Do(b.join)
}

// join waits for both workers and releases both halves.
func (b *bridge) join() {
	timer := time.NewTimer(b.opts.CloseTimeout)
	defer timer.Stop()

	var errs *multierror.Error

	select {
	case <-b.writer.done:
	case <-timer.C:
		b.log.Warn().Dur("timeout", b.opts.CloseTimeout).Int("queued", len(b.outbound)).
			Msg("writer did not flush in time, closing write half")
		b.forced.Store(true)
		if err := b.wr.release(true); err != nil {
			errs = multierror.Append(errs, err)
		}
		<-b.writer.done
	}

	if err := b.wr.release(false); err != nil {
		errs = multierror.Append(errs, err)
	}
	rdErr := b.rdErr
	if !b.distinct {
		rdErr = b.rd.release(false)
	}
	if rdErr != nil {
		errs = multierror.Append(errs, rdErr)
	}
	<-b.reader.done

	b.state.Store(int32(StateClosed))
	if err := errs.ErrorOrNil(); err != nil {
		b.log.Warn().Err(err).Msg("releasing device handle")
	}
	b.log.Debug().
		Stringer("reader", b.reader.status.Reason).
		Stringer("writer", b.writer.status.Reason).
		Msg("bridge closed")
	close(b.done)
}

// send enqueues a copy of data for the writer.
func (b *bridge) send(ctx context.Context, data []byte) error {
	if b.closed.Load() {
		return ErrPortClosed
	}
	if b.writer.stopped() {
		return b.writer.err()
	}

	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.stopping || b.writer.stopped() {
		return b.sendErr()
	}

	buf, release := b.pools.GetPooledBuffer(len(data))
	copy(buf, data)
	c := outboundChunk{data: buf, release: release}

	select {
	case b.outbound <- c:
		return nil
	default:
	}

	b.metrics.BackpressureWaits.Inc()
	select {
	case b.outbound <- c:
		return nil
	case <-b.stopSend:
		release()
		return b.sendErr()
	case <-b.writer.done:
		release()
		return b.sendErr()
	case <-ctx.Done():
		release()
		return ctx.Err()
	}
}

func (b *bridge) sendErr() error {
	if b.closed.Load() {
		return ErrPortClosed
	}
	if b.writer.stopped() {
		return b.writer.err()
	}
	return ErrPortClosed
}

// recv returns the next inbound chunk.
func (b *bridge) recv(ctx context.Context) ([]byte, error) {
	if b.closed.Load() || b.readDrained.Load() {
		return nil, ErrPortClosed
	}
	select {
	case chunk, ok := <-b.inbound:
		return b.received(chunk, ok)
	case <-b.quit:
		// Shutting down; hand out what is already queued, then stop.
		select {
		case chunk, ok := <-b.inbound:
			return b.received(chunk, ok)
		default:
			b.readDrained.Store(true)
			return nil, ErrPortClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *bridge) received(chunk []byte, ok bool) ([]byte, error) {
	if !ok {
		return nil, b.recvErr()
	}
	return chunk, nil
}

func (b *bridge) recvErr() error {
	if b.closed.Load() {
		return ErrPortClosed
	}
	return b.reader.err()
}
