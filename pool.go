package mymuduo

import (
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// LoopThreadPool owns N LoopThreads and round-robins getNextLoop() across
// them, degenerating to the base loop when N == 0. Ported from spec.md
// §4.4. The loops are held in a plain slice in construction order; there
// is no separate load-balancer type.
type LoopThreadPool struct {
	baseLoop *EventLoop
	opts     *Options

	threads []*LoopThread
	loops   []*EventLoop
	next    atomic.Int64
}

// NewLoopThreadPool binds a pool to its base loop (used directly when
// NumEventLoop == 0).
func NewLoopThreadPool(baseLoop *EventLoop, opts *Options) *LoopThreadPool {
	return &LoopThreadPool{baseLoop: baseLoop, opts: opts}
}

// Start constructs opts.NumEventLoop subloops, in construction order, and
// returns once every one of them has published its EventLoop. initCB, if
// non-nil, runs on each subloop's goroutine right after construction.
func (p *LoopThreadPool) Start(initCB LoopThreadInitCallback) []*EventLoop {
	for i := 0; i < p.opts.NumEventLoop; i++ {
		lt := NewLoopThread(p.opts, initCB, "")
		p.threads = append(p.threads, lt)
		p.loops = append(p.loops, lt.StartLoop())
	}
	return p.loops
}

// GetNextLoop returns the base loop when the pool has zero subloops
// (spec.md §8 boundary: "getNextLoop() on a zero-thread pool always
// returns the base loop"), otherwise advances a round-robin index modulo
// len(loops) in construction order.
func (p *LoopThreadPool) GetNextLoop() *EventLoop {
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	i := p.next.Add(1) - 1
	return p.loops[int(i)%len(p.loops)]
}

// Loops returns the subloop pool in construction order (empty if N == 0).
func (p *LoopThreadPool) Loops() []*EventLoop { return p.loops }

// Stop quits and joins every subloop thread, aggregating any errors
// returned while closing their Pollers.
func (p *LoopThreadPool) Stop() error {
	var err error
	for _, lt := range p.threads {
		err = multierr.Append(err, lt.Stop())
	}
	return err
}
