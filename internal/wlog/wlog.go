// Package wlog is the library's bundled default Logger implementation: a
// zap SugaredLogger writing through a lumberjack rotating file sink, the
// same pairing declared in _examples/walkon-gnet/go.mod and
// _examples/govoltron-voltron/go.mod.
package wlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the rotating sink and the minimum level written to it.
type Config struct {
	// Filename is the rotated log file path. Empty means stderr only.
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      zapcore.Level
}

// DefaultConfig matches the conservative rotation settings commonly paired
// with lumberjack in the examples pack: modest size cap, a handful of
// backups, no forced compression.
func DefaultConfig() Config {
	return Config{
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
		Level:      zapcore.InfoLevel,
	}
}

// Logger adapts a zap.SugaredLogger to the mymuduo.Logger interface.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a Logger from Config. With an empty Filename it logs to
// stderr only; otherwise stderr and the rotating file both receive output.
func New(cfg Config) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if cfg.Filename != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), cfg.Level)
	return &Logger{s: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.s.Errorf(format, args...)
	panic(&FatalError{msg: l.s.Desugar().Name()})
}

// FatalError is panicked by Fatalf instead of calling os.Exit, so library
// code embedded in a larger process can recover at a boundary it controls
// (e.g. a test harness) while still treating the condition as fatal to the
// EventLoop/Acceptor that raised it.
type FatalError struct{ msg string }

func (e *FatalError) Error() string { return "mymuduo: fatal condition logged, see preceding error" }
