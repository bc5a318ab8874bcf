package serialbridge

import (
	"fmt"
	"slices"
	"strings"
)

// isPortAvailable reports whether portName looks like a serial device and
// is currently listed by the OS.
func isPortAvailable(portName string) (bool, error) {
	// Reject path traversal before anything touches the filesystem.
	if strings.Contains(portName, "..") {
		return false, fmt.Errorf("%w: %q contains path traversal", ErrInvalidPortName, portName)
	}
	if !isValidPortPattern(portName) {
		return false, fmt.Errorf("%w: %q does not look like a serial port", ErrInvalidPortName, portName)
	}

	ports, err := AvailablePorts()
	if err != nil {
		return false, fmt.Errorf("listing ports: %w", err)
	}
	return slices.Contains(ports, portName), nil
}

// isValidPortPattern accepts COM1..COM999 on Windows and /dev/tty*, /dev/cu*
// elsewhere.
func isValidPortPattern(portName string) bool {
	if strings.HasPrefix(portName, "COM") {
		digits := portName[3:]
		if len(digits) == 0 || len(digits) > 3 {
			return false
		}
		for _, r := range digits {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return strings.HasPrefix(portName, "/dev/tty") || strings.HasPrefix(portName, "/dev/cu")
}
