//go:build !linux

package netpoll

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller is the secondary backend named in spec.md §4.1 ("the backend
// is abstract: alternative implementations (poll(2), kqueue) must obey the
// same contract") and Design Notes §9 ("Polymorphic Poller"). It trades
// epoll's O(1) readiness reporting for unix.Poll's O(n) scan, acceptable
// for the non-Linux build targets this backend serves.
type pollPoller struct {
	mu       sync.Mutex
	channels map[int]Desc
}

// OpenPoller constructs the poll(2) backend.
func OpenPoller() (Poller, error) {
	return &pollPoller{channels: make(map[int]Desc)}, nil
}

func (p *pollPoller) Poll(timeout time.Duration) (time.Time, []Desc, error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.channels))
	descs := make([]Desc, 0, len(p.channels))
	for _, d := range p.channels {
		fds = append(fds, unix.PollFd{Fd: int32(d.FD()), Events: fromEvent(d.Interest())})
		descs = append(descs, d)
	}
	p.mu.Unlock()

	msec := int(timeout / time.Millisecond)
	if timeout < 0 {
		msec = -1
	}
	n, err := unix.Poll(fds, msec)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil, nil
		}
		return now, nil, os.NewSyscallError("poll", err)
	}
	if n <= 0 {
		return now, nil, nil
	}

	active := make([]Desc, 0, n)
	for i, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		descs[i].SetRevents(toEvent(uint32(pfd.Revents)))
		active = append(active, descs[i])
	}
	return now, active, nil
}

func (p *pollPoller) UpdateChannel(d Desc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	index := d.Index()
	switch index {
	case IndexNew, IndexDeleted:
		p.channels[d.FD()] = d
		d.SetIndex(IndexAdded)
	default:
		if d.Interest() == EventNone {
			delete(p.channels, d.FD())
			d.SetIndex(IndexDeleted)
		}
	}
	return nil
}

func (p *pollPoller) RemoveChannel(d Desc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, d.FD())
	d.SetIndex(IndexNew)
	return nil
}

func (p *pollPoller) HasChannel(d Desc) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[d.FD()]
	return ok
}

func (p *pollPoller) Close() error { return nil }

func fromEvent(e Event) int16 {
	var out int16
	if e.Has(EventRead) {
		out |= unix.POLLIN | unix.POLLPRI
	}
	if e.Has(EventWrite) {
		out |= unix.POLLOUT
	}
	return out
}

func toEvent(raw uint32) Event {
	var out Event
	if raw&(unix.POLLIN|unix.POLLPRI) != 0 {
		out |= EventRead
	}
	if raw&unix.POLLPRI != 0 {
		out |= EventPri
	}
	if raw&unix.POLLOUT != 0 {
		out |= EventWrite
	}
	if raw&unix.POLLHUP != 0 {
		out |= EventHup
	}
	if raw&(unix.POLLERR|unix.POLLNVAL) != 0 {
		out |= EventErr
	}
	return out
}
