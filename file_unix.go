//go:build linux || darwin || freebsd || netbsd || openbsd

package serialbridge

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileHandle adapts an already configured *os.File (a tty, a pty, a
// character device) to Handle. Its Duplicate uses dup(2), so the reader
// and writer each own a descriptor and closing one does not disturb the
// other.
//
// The file should be in non-blocking (runtime-polled) mode, as files from
// os.OpenFile on character devices are; Close cannot interrupt a Read on a
// descriptor in blocking mode.
type FileHandle struct {
	*os.File
}

func NewFileHandle(f *os.File) *FileHandle {
	return &FileHandle{File: f}
}

// Duplicate implements Duplicator.
func (h *FileHandle) Duplicate() (Handle, error) {
	// SyscallConn rather than Fd: Fd switches the descriptor to blocking
	// mode, after which Close no longer unblocks a pending Read.
	rc, err := h.SyscallConn()
	if err != nil {
		return nil, err
	}
	var (
		dupFd  int
		dupErr error
	)
	if err := rc.Control(func(fd uintptr) {
		dupFd, dupErr = unix.FcntlInt(fd, unix.F_DUPFD_CLOEXEC, 0)
	}); err != nil {
		return nil, err
	}
	if dupErr != nil {
		return nil, fmt.Errorf("dup %s: %w", h.Name(), dupErr)
	}
	return &FileHandle{File: os.NewFile(uintptr(dupFd), h.Name())}, nil
}
