package mymuduo

import (
	"os"
	"testing"
	"time"
)

// pipePair returns a connected pipe as plain *os.File descriptors, handy
// for tests that need a real, selectable fd without opening a socket.
func pipePair() (*os.File, *os.File, error) {
	return os.Pipe()
}

// netFileFromFD wraps a raw fd in an *os.File for handing to net.FileConn,
// the standard way to turn a socketpair half into a *net.UnixConn.
func netFileFromFD(t *testing.T, fd int) *os.File {
	t.Helper()
	return os.NewFile(uintptr(fd), "socketpair")
}

// testLogger discards everything except Fatalf, which fails the test
// instead of panicking the process. The library's own construction-fatal
// paths go through errors.Fatal, which logs via Errorf (discarded here)
// and then panics regardless of the Logger.
type testLogger struct{ t *testing.T }

func (l testLogger) Debugf(string, ...interface{}) {}
func (l testLogger) Infof(string, ...interface{})  {}
func (l testLogger) Warnf(string, ...interface{})  {}
func (l testLogger) Errorf(string, ...interface{}) {}
func (l testLogger) Fatalf(format string, args ...interface{}) {
	l.t.Fatalf(format, args...)
}

func testOptions(t *testing.T, opts ...Option) *Options {
	all := append([]Option{WithLogger(testLogger{t})}, opts...)
	return NewOptions(all...)
}

// newTestLoop starts an EventLoop on its own goroutine (construction must
// happen on the goroutine that will call Loop) and registers cleanup.
func newTestLoop(t *testing.T, opts ...Option) *EventLoop {
	t.Helper()
	lt := NewLoopThread(testOptions(t, opts...), nil, "")
	loop := lt.StartLoop()
	t.Cleanup(func() { lt.Stop() })
	return loop
}

// run executes fn on loop's goroutine and blocks until it completes,
// giving tests a synchronous way to exercise loop-confined operations.
func run(t *testing.T, loop *EventLoop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	loop.RunInLoop(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for loop-confined task")
	}
}
