//go:build !linux

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

// Wakeup on non-Linux POSIX targets falls back to the self-pipe variant
// spec.md §6 names explicitly ("Alternative implementations may use a
// self-pipe."). Only the read end is exposed as FD(); Notify/Drain hide
// the two-descriptor plumbing from the EventLoop.
type Wakeup struct {
	r, w int
}

func NewWakeup() (*Wakeup, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, os.NewSyscallError("pipe2", err)
	}
	return &Wakeup{r: fds[0], w: fds[1]}, nil
}

func (w *Wakeup) FD() int { return w.r }

func (w *Wakeup) Notify() error {
	_, err := unix.Write(w.w, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (w *Wakeup) Drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(w.r, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return os.NewSyscallError("read", err)
		}
	}
}

func (w *Wakeup) Close() error {
	err1 := unix.Close(w.r)
	err2 := unix.Close(w.w)
	if err1 != nil {
		return os.NewSyscallError("close", err1)
	}
	if err2 != nil {
		return os.NewSyscallError("close", err2)
	}
	return nil
}
