package mymuduo

import (
	"strconv"
	"sync"

	"go.uber.org/atomic"
)

var threadCounter atomic.Int32

// Thread wraps a goroutine running a user function, publishing readiness
// back to the caller before returning from Start — the Go analogue of
// original_source/Thread.cc's semaphore handshake (there, waiting for the
// child to publish its kernel thread id; here, simply waiting for the
// child goroutine to have actually started running, since Go exposes no
// thread id to publish).
type Thread struct {
	name string
	fn   func()

	startOnce sync.Once
	ready     chan struct{}
	started   atomic.Bool
	joined    atomic.Bool
	done      chan struct{}
}

// NewThread wraps fn. name defaults to "Thread<N>" if empty, matching
// original_source/Thread.cc's setDefaultName.
func NewThread(fn func(), name string) *Thread {
	if name == "" {
		n := threadCounter.Add(1)
		name = "Thread" + strconv.Itoa(int(n))
	}
	return &Thread{name: name, fn: fn, ready: make(chan struct{}), done: make(chan struct{})}
}

// Start spawns the goroutine and blocks until it has begun running.
func (t *Thread) Start() {
	t.startOnce.Do(func() {
		t.started.Store(true)
		go func() {
			close(t.ready)
			defer close(t.done)
			t.fn()
		}()
		<-t.ready
	})
}

// Join blocks until the goroutine's function returns.
func (t *Thread) Join() {
	t.joined.Store(true)
	<-t.done
}

func (t *Thread) Started() bool { return t.started.Load() }
func (t *Thread) Name() string  { return t.name }
