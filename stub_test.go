package serialbridge

import (
	"bytes"
	"errors"
	"os"
	"sync"

	"go.uber.org/atomic"
)

// readResult is one scripted device read.
type readResult struct {
	data []byte
	err  error
}

// stubDevice is a scripted blocking device. Reads block until a result is
// pushed on reads; writes are recorded and can be gated, shortened or
// failed.
type stubDevice struct {
	reads    chan readResult
	leftover *readResult // only touched by the reading goroutine

	readClosed  chan struct{}
	writeClosed chan struct{}
	readOnce    sync.Once
	writeOnce   sync.Once
	closeCount  atomic.Int32

	// writeGate, when set, makes every Write wait for a token or close.
	writeGate chan struct{}
	// writeStarted, when set, is signalled on every Write entry.
	writeStarted chan struct{}

	mu         sync.Mutex
	written    []byte
	writeCalls int
	maxWrite   int
	writeErr   error
}

func newStubDevice() *stubDevice {
	return &stubDevice{
		reads:       make(chan readResult, 64),
		readClosed:  make(chan struct{}),
		writeClosed: make(chan struct{}),
	}
}

// Read hands out a scripted result across as many calls as p requires,
// reporting its error only with the last piece.
func (s *stubDevice) Read(p []byte) (int, error) {
	if s.leftover == nil {
		select {
		case r := <-s.reads:
			s.leftover = &r
		case <-s.readClosed:
			return 0, os.ErrClosed
		}
	}
	r := s.leftover
	n := copy(p, r.data)
	r.data = r.data[n:]
	if len(r.data) > 0 {
		return n, nil
	}
	s.leftover = nil
	return n, r.err
}

func (s *stubDevice) Write(p []byte) (int, error) {
	if s.writeStarted != nil {
		select {
		case s.writeStarted <- struct{}{}:
		default:
		}
	}
	if s.writeGate != nil {
		select {
		case <-s.writeGate:
		case <-s.writeClosed:
			return 0, os.ErrClosed
		}
	}

	select {
	case <-s.writeClosed:
		return 0, os.ErrClosed
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	n := len(p)
	if s.maxWrite > 0 && n > s.maxWrite {
		n = s.maxWrite
	}
	s.written = append(s.written, p[:n]...)
	return n, nil
}

func (s *stubDevice) Close() error {
	s.closeCount.Inc()
	s.closeRead()
	s.closeWrite()
	return nil
}

func (s *stubDevice) closeRead()  { s.readOnce.Do(func() { close(s.readClosed) }) }
func (s *stubDevice) closeWrite() { s.writeOnce.Do(func() { close(s.writeClosed) }) }

func (s *stubDevice) push(data string) {
	s.reads <- readResult{data: []byte(data)}
}

func (s *stubDevice) failRead(err error) {
	s.reads <- readResult{err: err}
}

func (s *stubDevice) failWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *stubDevice) setMaxWrite(n int) {
	s.mu.Lock()
	s.maxWrite = n
	s.mu.Unlock()
}

func (s *stubDevice) Written() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.written)
}

func (s *stubDevice) WriteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCalls
}

// dupDevice is a stubDevice that hands the writer its own handle, so the
// read side can be closed on its own.
type dupDevice struct {
	*stubDevice
	view     *writeView
	dupErr   error
	closeErr error
}

func (d *dupDevice) Duplicate() (Handle, error) {
	if d.dupErr != nil {
		return nil, d.dupErr
	}
	d.view = &writeView{s: d.stubDevice}
	return d.view, nil
}

// Close on the original only closes the read side.
func (d *dupDevice) Close() error {
	d.closeCount.Inc()
	d.closeRead()
	return d.closeErr
}

type writeView struct {
	s      *stubDevice
	closed atomic.Int32
}

func (w *writeView) Read([]byte) (int, error)    { return 0, errors.New("write-only handle") }
func (w *writeView) Write(p []byte) (int, error) { return w.s.Write(p) }
func (w *writeView) Close() error {
	w.closed.Inc()
	w.s.closeWrite()
	return nil
}

// syncBuffer collects log output written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
