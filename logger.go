package mymuduo

import "github.com/kongxin123456/mymuduo/internal/wlog"

// Logger is the library's sole logging collaborator. Per spec.md §1, the
// logging facility itself is out of core scope and "referenced only by
// interface" — this interface is that reference point. The bundled
// default (internal/wlog) is zap+lumberjack backed; callers may supply
// their own via WithLogger.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// defaultLogger constructs the bundled zap Logger with wlog.DefaultConfig,
// whose empty Filename means it writes to stderr only (no rotating file).
// It is called only when an Options is built without a Logger.
func defaultLogger() Logger {
	return wlog.New(wlog.DefaultConfig())
}
