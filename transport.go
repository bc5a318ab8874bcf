package serialbridge

import (
	"sync"
	"time"

	"go.bug.st/serial"
)

// Handle is an opened, configured, blocking duplex byte stream.
//
// Close must unblock any Read or Write in progress on the same handle; the
// bridge relies on that to stop its workers.
type Handle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Duplicator is implemented by handles that can hand out a second,
// independently closable handle onto the same device (dup(2) on unix).
// When the handle passed to NewPort implements it, the reader keeps the
// original and the writer gets the duplicate.
type Duplicator interface {
	Duplicate() (Handle, error)
}

// SerialPort abstracts the subset of go.bug.st/serial.Port used by Open.
type SerialPort interface {
	Handle
	SetReadTimeout(d time.Duration) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
}

// bugstPort wraps the concrete serial.Port to satisfy SerialPort.
// go.bug.st ports tolerate one concurrent reader and one concurrent writer,
// so both halves share it.
type bugstPort struct {
	serial.Port
}

// half is one direction's view of the device. When the halves share a
// handle it is closed exactly once, on the last release or on a forced one.
type half struct {
	h      Handle
	once   sync.Once
	err    error
	shared *sharedClose
}

type sharedClose struct {
	mu     sync.Mutex
	refs   int
	closed bool
}

func (hf *half) Read(p []byte) (int, error)  { return hf.h.Read(p) }
func (hf *half) Write(p []byte) (int, error) { return hf.h.Write(p) }

// release gives up this half. force closes a shared handle even while the
// other half still holds it; that is how a writer stuck past the close
// timeout gets unblocked.
func (hf *half) release(force bool) error {
	hf.once.Do(func() {
		if hf.shared == nil {
			hf.err = hf.h.Close()
			return
		}
		sc := hf.shared
		sc.mu.Lock()
		sc.refs--
		doClose := !sc.closed && (force || sc.refs == 0)
		if doClose {
			sc.closed = true
		}
		sc.mu.Unlock()
		if doClose {
			hf.err = hf.h.Close()
		}
	})
	return hf.err
}

// split divides h into a read half and a write half.
func split(h Handle) (rd, wr *half, distinct bool, err error) {
	if d, ok := h.(Duplicator); ok {
		w, err := d.Duplicate()
		if err != nil {
			return nil, nil, false, err
		}
		return &half{h: h}, &half{h: w}, true, nil
	}
	sc := &sharedClose{refs: 2}
	return &half{h: h, shared: sc}, &half{h: h, shared: sc}, false, nil
}
