package mymuduo

import "runtime"

// LoopThreadInitCallback is invoked with the freshly constructed EventLoop
// before it starts looping, letting the caller do per-loop setup.
type LoopThreadInitCallback func(loop *EventLoop)

// LoopThread pairs a Thread with the construction of one EventLoop inside
// it, publishing the loop pointer back to the caller once it's ready.
// Ported from original_source/EventLoopThread.cc; the condition-variable
// handoff there becomes a size-1 channel here.
type LoopThread struct {
	thread *Thread
	opts   *Options
	initCB LoopThreadInitCallback
	loopCh chan *EventLoop
	loop   *EventLoop

	// closeErr is the result of loop.Close, run on the loop's own
	// goroutine once Loop returns; read by Stop after Join.
	closeErr error
}

// NewLoopThread builds a LoopThread. initCB may be nil.
func NewLoopThread(opts *Options, initCB LoopThreadInitCallback, name string) *LoopThread {
	lt := &LoopThread{opts: opts, initCB: initCB, loopCh: make(chan *EventLoop, 1)}
	lt.thread = NewThread(lt.threadFunc, name)
	return lt
}

// StartLoop starts the underlying goroutine and blocks until the new
// EventLoop has been constructed and published, returning it.
func (lt *LoopThread) StartLoop() *EventLoop {
	lt.thread.Start()
	lt.loop = <-lt.loopCh
	return lt.loop
}

func (lt *LoopThread) threadFunc() {
	if lt.opts.LockOSThread {
		runtime.LockOSThread()
	}
	loop, err := NewEventLoop(lt.opts)
	if err != nil {
		// NewEventLoop already routed the error through errors.Fatal,
		// which panics; this path only runs if that behavior changes.
		lt.loopCh <- nil
		return
	}
	lt.loopCh <- loop
	if lt.initCB != nil {
		lt.initCB(loop)
	}
	loop.Loop()
	lt.closeErr = loop.Close()
}

// Stop quits the loop (safe cross-goroutine), joins the thread, and
// returns the result of closing the loop's Poller/wakeup descriptors,
// which the loop goroutine does itself after Loop returns.
func (lt *LoopThread) Stop() error {
	if lt.loop == nil {
		return nil
	}
	lt.loop.Quit()
	lt.thread.Join()
	return lt.closeErr
}

// Loop returns the EventLoop once StartLoop has returned, nil before that.
func (lt *LoopThread) Loop() *EventLoop { return lt.loop }
