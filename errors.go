package serialbridge

import (
	"errors"
	"fmt"
)

var (
	// ErrPortClosed is returned by every operation once the port was closed,
	// dropped, or shut down because the other direction failed.
	ErrPortClosed = errors.New("serialbridge: port closed")

	// ErrDevice matches any *DeviceError via errors.Is.
	ErrDevice = errors.New("serialbridge: device error")

	ErrInvalidConfig   = errors.New("serialbridge: invalid configuration")
	ErrInvalidPortName = errors.New("serialbridge: invalid port name")
	ErrNilHandle       = errors.New("serialbridge: handle is nil")
)

// DeviceError reports a failed read or write on the underlying device.
// It is terminal for the direction it happened in.
type DeviceError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("serialbridge: device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is reports true for ErrDevice so callers need not use errors.As just to
// classify the failure.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDevice
}
