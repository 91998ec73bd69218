package mymuduo

import (
	"sync"
	"time"

	"github.com/kongxin123456/mymuduo/errors"
	"github.com/kongxin123456/mymuduo/internal/netpoll"
	"go.uber.org/atomic"
)

// loopSentinel enforces spec.md §3's EventLoop invariant ("at most one
// EventLoop per OS thread... fatal on violation"), adapted to Go's
// goroutine model per DESIGN.md OQ-2: the key is the constructing
// goroutine's id rather than an OS thread id.
var loopSentinel sync.Map // map[uint64]*EventLoop

// EventLoop owns one Poller, one wakeup descriptor, a channel registry
// (delegated to the Poller), and a cross-goroutine pending-task queue. It
// runs its poll/dispatch/pending-tasks loop on exactly one goroutine for
// its entire lifetime. Ported from original_source/EventLoop.cc; see
// spec.md §4.3.
type EventLoop struct {
	owner uint64

	poller        netpoll.Poller
	wakeup        *netpoll.Wakeup
	wakeupChannel *Channel

	mu      sync.Mutex
	pending []func()

	looping        atomic.Bool
	quitFlag       atomic.Bool
	callingPending atomic.Bool

	pollTimeout    time.Duration
	pollReturnTime time.Time

	logger Logger
}

// NewEventLoop constructs an EventLoop. It must be called from the
// goroutine that will drive Loop(); that goroutine becomes the loop's
// permanent owner. A second EventLoop constructed on the same goroutine is
// construction-fatal, mirroring original_source/EventLoop.cc's
// `t_loopInthisThread` check.
func NewEventLoop(opts *Options) (*EventLoop, error) {
	if opts == nil {
		opts = NewOptions()
	}
	gid := currentGoroutineID()
	if _, exists := loopSentinel.Load(gid); exists {
		errors.Fatal(opts.Logger.Errorf, "mymuduo: another EventLoop already exists on goroutine %d", gid)
	}

	poller, err := netpoll.OpenPoller()
	if err != nil {
		errors.Fatal(opts.Logger.Errorf, "mymuduo: failed to open poller backend: %v", err)
		return nil, err
	}
	wakeup, err := netpoll.NewWakeup()
	if err != nil {
		errors.Fatal(opts.Logger.Errorf, "mymuduo: failed to create wakeup descriptor: %v", err)
		return nil, err
	}

	l := &EventLoop{
		owner:       gid,
		poller:      poller,
		wakeup:      wakeup,
		pollTimeout: opts.PollTimeout,
		logger:      opts.Logger,
	}
	l.wakeupChannel = NewChannel(l, wakeup.FD())
	l.wakeupChannel.SetReadCallback(func(time.Time) { l.handleWakeupRead() })
	l.wakeupChannel.EnableReading()

	loopSentinel.Store(gid, l)
	l.logger.Debugf("mymuduo: EventLoop created on goroutine %d", gid)
	return l, nil
}

// IsInLoopGoroutine reports whether the calling goroutine is this loop's
// owner.
func (l *EventLoop) IsInLoopGoroutine() bool { return currentGoroutineID() == l.owner }

func (l *EventLoop) assertInLoopGoroutine(op string) {
	if !l.IsInLoopGoroutine() {
		errors.Fatal(l.logger.Errorf, "mymuduo: %s: %v (called from goroutine %d, owner is %d)", op, errors.ErrWrongEventLoop, currentGoroutineID(), l.owner)
	}
}

// Loop repeatedly polls, dispatches active channels, then runs pending
// tasks, until Quit is observed. May only be called on the owning
// goroutine; fatal otherwise (spec.md §4.3).
func (l *EventLoop) Loop() {
	l.assertInLoopGoroutine("EventLoop.Loop")
	l.looping.Store(true)
	l.logger.Infof("mymuduo: EventLoop %d start looping", l.owner)

	for !l.quitFlag.Load() {
		now, active, err := l.poller.Poll(l.pollTimeout)
		if err != nil {
			l.logger.Errorf("mymuduo: poller wait error: %v", err)
			continue
		}
		l.pollReturnTime = now
		for _, d := range active {
			if ch, ok := d.(*Channel); ok {
				ch.HandleEvent(now)
			}
		}
		l.doPendingFunctors()
	}

	l.logger.Infof("mymuduo: EventLoop %d stop looping", l.owner)
	l.looping.Store(false)
}

// Quit sets the quit flag; the loop exits after finishing its current
// iteration. Safe to call from any goroutine — if called off the owning
// goroutine, Wakeup is used so a blocked Poll returns promptly.
func (l *EventLoop) Quit() {
	l.quitFlag.Store(true)
	if !l.IsInLoopGoroutine() {
		if err := l.wakeup.Notify(); err != nil {
			l.logger.Errorf("mymuduo: wakeup on quit failed: %v", err)
		}
	}
}

// RunInLoop executes task immediately if called from the owning
// goroutine, otherwise defers to QueueInLoop.
func (l *EventLoop) RunInLoop(task func()) {
	if l.IsInLoopGoroutine() {
		task()
		return
	}
	l.QueueInLoop(task)
}

// QueueInLoop appends task to the pending queue under the mutex. The loop
// is woken if the caller is a foreign goroutine, or if the owning
// goroutine is itself currently draining the pending queue — the latter
// ensures a task enqueued by another pending task runs on the next
// iteration rather than being starved behind a long Poll (spec.md §4.3).
func (l *EventLoop) QueueInLoop(task func()) {
	l.mu.Lock()
	l.pending = append(l.pending, task)
	l.mu.Unlock()

	if !l.IsInLoopGoroutine() || l.callingPending.Load() {
		if err := l.wakeup.Notify(); err != nil {
			l.logger.Errorf("mymuduo: wakeup on queueInLoop failed: %v", err)
		}
	}
}

func (l *EventLoop) handleWakeupRead() {
	if err := l.wakeup.Drain(); err != nil {
		l.logger.Errorf("mymuduo: wakeup drain failed: %v", err)
	}
}

// doPendingFunctors swaps the pending queue under lock, releases the lock,
// then runs the swapped-out tasks — bounding lock-hold time and letting a
// task itself call QueueInLoop without deadlocking.
func (l *EventLoop) doPendingFunctors() {
	l.callingPending.Store(true)
	defer l.callingPending.Store(false)

	l.mu.Lock()
	funcs := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, f := range funcs {
		f()
	}
}

// updateChannel/removeChannel/HasChannel delegate to the Poller; must be
// invoked on the owning goroutine (callers that might not be use
// RunInLoop).
func (l *EventLoop) updateChannel(ch *Channel) {
	l.assertInLoopGoroutine("EventLoop.updateChannel")
	if err := l.poller.UpdateChannel(ch); err != nil {
		l.logger.Errorf("mymuduo: updateChannel(fd=%d) failed: %v", ch.FD(), err)
	}
}

func (l *EventLoop) removeChannel(ch *Channel) {
	l.assertInLoopGoroutine("EventLoop.removeChannel")
	if err := l.poller.RemoveChannel(ch); err != nil {
		l.logger.Errorf("mymuduo: removeChannel(fd=%d) failed: %v", ch.FD(), err)
	}
}

// HasChannel reports whether ch is currently registered with this loop's
// Poller.
func (l *EventLoop) HasChannel(ch *Channel) bool {
	l.assertInLoopGoroutine("EventLoop.HasChannel")
	return l.poller.HasChannel(ch)
}

// PollReturnTime is the timestamp of the most recently completed Poll
// call, passed to read callbacks as receiveTime.
func (l *EventLoop) PollReturnTime() time.Time { return l.pollReturnTime }

// Close tears down the wakeup channel and descriptor and the Poller
// backend, and clears this goroutine's sentinel entry. Must be called
// after Loop has returned.
func (l *EventLoop) Close() error {
	l.wakeupChannel.DisableAll()
	l.wakeupChannel.Remove()
	err := l.wakeup.Close()
	if pErr := l.poller.Close(); pErr != nil && err == nil {
		err = pErr
	}
	loopSentinel.Delete(l.owner)
	return err
}
