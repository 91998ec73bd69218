package mymuduo

import (
	"time"

	"github.com/kongxin123456/mymuduo/internal/netpoll"
	"go.uber.org/atomic"
)

// Channel binds one descriptor to one EventLoop, carrying its interest
// mask and the four event callbacks. Ported from
// original_source/Channel.h and Channel.cc; see spec.md §4.2.
//
// Channel implements netpoll.Desc so that the Poller backends operate on
// live Channels without netpoll importing this package.
type Channel struct {
	loop *EventLoop
	fd   int

	events  netpoll.Event
	revents netpoll.Event
	index   int32

	readCB  func(t time.Time)
	writeCB func()
	closeCB func()
	errorCB func()

	// tie is the weak-reference emulation from Design Notes §9 / DESIGN.md
	// OQ-1: it reports whether the Channel's logical owner (a
	// TcpConnection) is still alive, without the Channel holding a strong
	// reference that would keep it alive artificially.
	tie  func() bool
	tied bool
}

// NewChannel creates a Channel for fd on loop, initially interested in no
// events.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: netpoll.IndexNew}
}

func (ch *Channel) FD() int                    { return ch.fd }
func (ch *Channel) Interest() netpoll.Event    { return ch.events }
func (ch *Channel) Index() int32               { return ch.index }
func (ch *Channel) SetIndex(idx int32)         { ch.index = idx }
func (ch *Channel) SetRevents(r netpoll.Event) { ch.revents = r }

func (ch *Channel) OwnerLoop() *EventLoop { return ch.loop }

func (ch *Channel) SetReadCallback(cb func(t time.Time)) { ch.readCB = cb }
func (ch *Channel) SetWriteCallback(cb func())           { ch.writeCB = cb }
func (ch *Channel) SetCloseCallback(cb func())           { ch.closeCB = cb }
func (ch *Channel) SetErrorCallback(cb func())           { ch.errorCB = cb }

// Tie installs the weak-owner liveness check described above. alive is
// expected to read an atomic "disposed" flag on the owner, never to block
// or allocate.
func (ch *Channel) Tie(alive func() bool) {
	ch.tie = alive
	ch.tied = true
}

func (ch *Channel) IsNoneEvent() bool { return ch.events == netpoll.EventNone }
func (ch *Channel) IsReading() bool   { return ch.events.Has(netpoll.EventRead) }
func (ch *Channel) IsWriting() bool   { return ch.events.Has(netpoll.EventWrite) }

func (ch *Channel) EnableReading() {
	ch.events |= netpoll.EventRead
	ch.update()
}

func (ch *Channel) DisableReading() {
	ch.events &^= netpoll.EventRead
	ch.update()
}

func (ch *Channel) EnableWriting() {
	ch.events |= netpoll.EventWrite
	ch.update()
}

func (ch *Channel) DisableWriting() {
	ch.events &^= netpoll.EventWrite
	ch.update()
}

func (ch *Channel) DisableAll() {
	ch.events = netpoll.EventNone
	ch.update()
}

func (ch *Channel) update() { ch.loop.updateChannel(ch) }

// Remove detaches the Channel from its loop's Poller. Callers must have
// disabled all interest first (spec.md §5's "a Channel must be removed
// from its Poller before the underlying fd is closed").
func (ch *Channel) Remove() { ch.loop.removeChannel(ch) }

// HandleEvent dispatches revents to the installed callbacks in the fixed
// order from spec.md §4.2: HUP-without-IN -> close; ERR -> error;
// IN|PRI -> read; OUT -> write. If tied, dispatch is skipped when the
// owner has reported itself no longer alive.
func (ch *Channel) HandleEvent(receiveTime time.Time) {
	if ch.tied {
		if ch.tie == nil || !ch.tie() {
			return
		}
	}
	ch.handleEventWithGuard(receiveTime)
}

func (ch *Channel) handleEventWithGuard(receiveTime time.Time) {
	rev := ch.revents
	if rev.Has(netpoll.EventHup) && !rev.Has(netpoll.EventRead) {
		if ch.closeCB != nil {
			ch.closeCB()
		}
	}
	if rev.Has(netpoll.EventErr) {
		if ch.errorCB != nil {
			ch.errorCB()
		}
	}
	if rev.Has(netpoll.EventRead) || rev.Has(netpoll.EventPri) {
		if ch.readCB != nil {
			ch.readCB(receiveTime)
		}
	}
	if rev.Has(netpoll.EventWrite) {
		if ch.writeCB != nil {
			ch.writeCB()
		}
	}
}

// aliveFlag is a small helper used by TcpConnection to back Channel.Tie:
// an atomic boolean that starts alive and is flipped exactly once.
type aliveFlag struct{ disposed atomic.Bool }

func (a *aliveFlag) dispose()      { a.disposed.Store(true) }
func (a *aliveFlag) isAlive() bool { return !a.disposed.Load() }
