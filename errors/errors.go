// Package errors holds the sentinel errors the library logs when an
// operation is dropped or misused, plus the fatal helper used by parts
// of the core that have no recovery path (bind failure, duplicate
// EventLoop per goroutine, wakeup descriptor creation failure).
package errors

import "errors"

var (
	// ErrConnectionClosed is returned/logged when Send or Shutdown is
	// called on a TcpConnection that has already reached DISCONNECTED.
	ErrConnectionClosed = errors.New("mymuduo: connection is closed")

	// ErrAcceptorClosed is logged when the Acceptor's listening socket
	// has already been torn down.
	ErrAcceptorClosed = errors.New("mymuduo: acceptor is closed")

	// ErrWrongEventLoop is the contract-violation error for an operation
	// that must run on a specific EventLoop's goroutine but didn't.
	ErrWrongEventLoop = errors.New("mymuduo: operation invoked from the wrong event loop goroutine")

	// ErrServerAlreadyStarted guards TcpServer.SetThreadNum's precondition.
	ErrServerAlreadyStarted = errors.New("mymuduo: SetThreadNum must be called before Start")
)

// Fatal reports a construction-fatal error through the supplied logger and
// terminates the process. Used for the spec's "misconfiguration, not
// runtime failure" class (bind/listen failure, duplicate EventLoop on one
// goroutine, failure to create the wakeup descriptor or the poller
// backend) and for the wrong-goroutine contract violation checked by
// EventLoop.assertInLoopGoroutine.
func Fatal(logf func(format string, args ...interface{}), format string, args ...interface{}) {
	logf(format, args...)
	panic(errors.New("mymuduo: fatal: construction-fatal condition, see log"))
}
