package serialbridge

// StopReason says why a worker left its loop.
type StopReason int

const (
	// ReasonNone: the worker is still running.
	ReasonNone StopReason = iota
	// ReasonDeviceError: a device read or write failed.
	ReasonDeviceError
	// ReasonChannelClosed: the peer side of the worker's channel went away,
	// either the Port was dropped or Close closed the outbound queue.
	ReasonChannelClosed
	// ReasonRequestedShutdown: Close was called or the other direction
	// failed and the shutdown cascaded.
	ReasonRequestedShutdown
)

func (r StopReason) String() string {
	switch r {
	case ReasonDeviceError:
		return "device-error"
	case ReasonChannelClosed:
		return "channel-closed"
	case ReasonRequestedShutdown:
		return "requested-shutdown"
	default:
		return "none"
	}
}

// WorkerStatus is a snapshot of one worker. Once Running is false the
// status never changes again.
type WorkerStatus struct {
	Running bool
	Reason  StopReason
	Err     error // set only for ReasonDeviceError
}

// PortState is the port-level shutdown state machine.
type PortState int32

const (
	// StateOpen: both workers may be running and operations are accepted.
	StateOpen PortState = iota
	// StateClosing: shutdown was signalled; workers are winding down.
	StateClosing
	// StateClosed: both workers have exited and the handle is released.
	StateClosed
)

func (s PortState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// terminal is a write-once, read-many completion slot for one worker.
// status is written before done is closed and never after, so anyone who
// observed done may read it without locking.
type terminal struct {
	done   chan struct{}
	status WorkerStatus
}

func newTerminal() *terminal {
	return &terminal{done: make(chan struct{})}
}

// finish publishes the terminal status. Only the owning worker calls it,
// exactly once.
func (t *terminal) finish(reason StopReason, err error) {
	t.status = WorkerStatus{Reason: reason, Err: err}
	close(t.done)
}

func (t *terminal) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *terminal) snapshot() WorkerStatus {
	if !t.stopped() {
		return WorkerStatus{Running: true}
	}
	return t.status
}

// err converts a terminal status into the error surfaced to callers.
func (t *terminal) err() error {
	if t.status.Reason == ReasonDeviceError {
		return t.status.Err
	}
	return ErrPortClosed
}
