package mymuduo

import "time"

// defaultReadBufferCap is each connection buffer's initial capacity, the
// same order of magnitude as the teacher's read-buffer default.
const defaultReadBufferCap = 64 * 1024

// defaultHighWaterMark matches spec.md §8 scenario 2's 64 KiB crossing
// point. This package's tests pass their own smaller marks instead.
const defaultHighWaterMark = 64 * 1024

// defaultPollTimeout is "kPollTimeMs" from original_source/EventLoop.cc.
const defaultPollTimeout = 10 * time.Second

// Options configures a TcpServer. The zero value is not valid; build one
// with NewOptions and the With* setters, mirroring the functional-options
// convention implied by _examples/walkon-gnet/server_unix.go's
// svr.opts.* field accesses (ReusePort, LockOSThread, ReadBufferCap).
type Options struct {
	// NumEventLoop is the size of the subloop pool. Zero means the server
	// runs everything (accept + connection I/O) on the base loop.
	NumEventLoop int

	// ReusePort sets SO_REUSEPORT on the base loop's listening socket, so
	// a second process can bind the same address (e.g. during a rolling
	// restart). The single Acceptor still hands every accepted connection
	// to a subloop round-robin regardless of this setting.
	ReusePort bool

	// LockOSThread pins each loop's goroutine to its OS thread via
	// runtime.LockOSThread, matching el.loopRun(svr.opts.LockOSThread) in
	// the teacher.
	LockOSThread bool

	// ReadBufferCap sizes the initial capacity of each connection's input
	// and output buffers.
	ReadBufferCap int

	// HighWaterMark is the default output-buffer threshold (bytes) that
	// triggers a connection's high-water-mark callback. Overridable per
	// connection via TcpConnection.SetHighWaterMarkCallback.
	HighWaterMark int

	// PollTimeout bounds each Poller.Poll call. Defaults to 10s, the
	// source's kPollTimeMs.
	PollTimeout time.Duration

	// Logger receives all internal diagnostic output. Defaults to a
	// zap+lumberjack backed implementation from internal/wlog.
	Logger Logger
}

// Option mutates an Options value.
type Option func(*Options)

// NewOptions builds an Options with the library defaults applied, then
// layers the supplied functional options on top.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		ReadBufferCap: defaultReadBufferCap,
		HighWaterMark: defaultHighWaterMark,
		PollTimeout:   defaultPollTimeout,
	}
	for _, fn := range opts {
		fn(o)
	}
	if o.Logger == nil {
		o.Logger = defaultLogger()
	}
	return o
}

// WithNumEventLoop sets the subloop pool size.
func WithNumEventLoop(n int) Option {
	return func(o *Options) { o.NumEventLoop = n }
}

// WithReusePort sets SO_REUSEPORT on the base loop's listening socket.
func WithReusePort(b bool) Option {
	return func(o *Options) { o.ReusePort = b }
}

// WithLockOSThread pins loop goroutines to their OS thread.
func WithLockOSThread(b bool) Option {
	return func(o *Options) { o.LockOSThread = b }
}

// WithReadBufferCap sizes each connection's initial buffer capacity.
func WithReadBufferCap(n int) Option {
	return func(o *Options) { o.ReadBufferCap = n }
}

// WithHighWaterMark sets the default output-buffer back-pressure threshold.
func WithHighWaterMark(n int) Option {
	return func(o *Options) { o.HighWaterMark = n }
}

// WithPollTimeout overrides the default 10s Poller.Poll timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Options) { o.PollTimeout = d }
}

// WithLogger installs a caller-supplied Logger, replacing the bundled
// zap+lumberjack default.
func WithLogger(l Logger) Option {
	return func(o *Options) { o.Logger = l }
}
