//go:build linux

package netpoll

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// Wakeup is the cross-goroutine wakeup descriptor from spec.md §6: "a
// writable/readable kernel object (Linux: eventfd(0, NONBLOCK|CLOEXEC));
// 8-byte reads/writes."
type Wakeup struct {
	fd int
}

// NewWakeup creates the eventfd-backed wakeup descriptor. Construction-fatal
// on failure.
func NewWakeup() (*Wakeup, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	return &Wakeup{fd: fd}, nil
}

func (w *Wakeup) FD() int { return w.fd }

// Notify writes the 8-byte token that unblocks a poll wait on this fd.
func (w *Wakeup) Notify() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

// Drain consumes the pending token(s). A spurious wakeup (EAGAIN, nothing
// pending) is harmless per spec.md §5.
func (w *Wakeup) Drain() error {
	var buf [8]byte
	_, err := unix.Read(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("read", err)
	}
	return nil
}

func (w *Wakeup) Close() error {
	return os.NewSyscallError("close", unix.Close(w.fd))
}
