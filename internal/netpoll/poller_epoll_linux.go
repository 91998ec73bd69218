//go:build linux

package netpoll

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the primary backend, ported from
// original_source/EPollPoller.cc. Registration bookkeeping is a
// fd -> Desc map rather than an unsafe.Pointer carried in
// epoll_event.data, trading a small map lookup for safety against the Go
// garbage collector relocating nothing it shouldn't — but more importantly
// for staying within ordinary, non-unsafe Go, which is the idiom the
// teacher's own non-poller code uses throughout.
type epollPoller struct {
	fd int

	mu       sync.Mutex
	channels map[int]Desc

	events []unix.EpollEvent
}

// OpenPoller creates an epoll instance. Construction-fatal on failure per
// spec.md §7: the caller is expected to treat a non-nil error as fatal.
func OpenPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &epollPoller{
		fd:       fd,
		channels: make(map[int]Desc),
		events:   make([]unix.EpollEvent, initialEventListSize),
	}, nil
}

func (p *epollPoller) Poll(timeout time.Duration) (time.Time, []Desc, error) {
	msec := int(timeout / time.Millisecond)
	if timeout < 0 {
		msec = -1
	}

	n, err := unix.EpollWait(p.fd, p.events, msec)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil, nil
		}
		return now, nil, os.NewSyscallError("epoll_wait", err)
	}
	if n <= 0 {
		return now, nil, nil
	}

	active := make([]Desc, 0, n)
	p.mu.Lock()
	for i := 0; i < n; i++ {
		ev := p.events[i]
		d, ok := p.channels[int(ev.Fd)]
		if !ok {
			continue
		}
		d.SetRevents(toEvent(ev.Events))
		active = append(active, d)
	}
	grow := n == len(p.events)
	p.mu.Unlock()

	if grow {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return now, active, nil
}

func (p *epollPoller) UpdateChannel(d Desc) error {
	index := d.Index()
	p.mu.Lock()
	defer p.mu.Unlock()

	switch index {
	case IndexNew, IndexDeleted:
		if index == IndexNew {
			p.channels[d.FD()] = d
		}
		d.SetIndex(IndexAdded)
		return p.ctl(unix.EPOLL_CTL_ADD, d)
	default:
		if d.Interest() == EventNone {
			if err := p.ctl(unix.EPOLL_CTL_DEL, d); err != nil {
				return err
			}
			d.SetIndex(IndexDeleted)
			return nil
		}
		return p.ctl(unix.EPOLL_CTL_MOD, d)
	}
}

func (p *epollPoller) RemoveChannel(d Desc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.channels, d.FD())

	var err error
	if d.Index() == IndexAdded {
		err = p.ctl(unix.EPOLL_CTL_DEL, d)
	}
	d.SetIndex(IndexNew)
	return err
}

func (p *epollPoller) HasChannel(d Desc) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[d.FD()]
	return ok
}

func (p *epollPoller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

// ctl must be called with p.mu held.
func (p *epollPoller) ctl(op int, d Desc) error {
	ev := unix.EpollEvent{Fd: int32(d.FD()), Events: fromEvent(d.Interest())}
	if err := unix.EpollCtl(p.fd, op, d.FD(), &ev); err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

func fromEvent(e Event) uint32 {
	var out uint32
	if e.Has(EventRead) {
		out |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if e.Has(EventWrite) {
		out |= unix.EPOLLOUT
	}
	return out
}

func toEvent(raw uint32) Event {
	var out Event
	if raw&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		out |= EventRead
	}
	if raw&unix.EPOLLPRI != 0 {
		out |= EventPri
	}
	if raw&unix.EPOLLOUT != 0 {
		out |= EventWrite
	}
	if raw&unix.EPOLLHUP != 0 {
		out |= EventHup
	}
	if raw&unix.EPOLLERR != 0 {
		out |= EventErr
	}
	return out
}
