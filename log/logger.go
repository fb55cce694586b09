// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log provides the process-wide structured logger.
// It is a thin wrapper around log/slog with an extended level range
// (trace and crit on top of the builtin levels) and handlers tuned for
// terminal and machine consumption.
package log

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"
)

const (
	LevelCrit  = slog.Level(12)
	LevelError = slog.LevelError
	LevelWarn  = slog.LevelWarn
	LevelInfo  = slog.LevelInfo
	LevelDebug = slog.LevelDebug
	LevelTrace = slog.Level(-8)
)

// LevelString returns the short name used when rendering a level.
func LevelString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT"
	default:
		return l.String()
	}
}

// LevelFromString maps a verbosity name to its level. Unknown names map
// to info.
func LevelFromString(s string) slog.Level {
	switch s {
	case "trace", "trce":
		return LevelTrace
	case "debug", "dbug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error", "eror":
		return LevelError
	case "crit":
		return LevelCrit
	default:
		return LevelInfo
	}
}

// Logger writes key/value records to a handler.
type Logger interface {
	// With returns a logger that includes the given attributes in every record.
	With(ctx ...any) Logger

	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	// Crit logs and then exits the process.
	Crit(msg string, ctx ...any)

	// Enabled reports whether records at the given level would be emitted.
	Enabled(level slog.Level) bool

	// Handler returns the underlying slog handler.
	Handler() slog.Handler
}

type logger struct {
	inner *slog.Logger
}

// NewLogger creates a Logger backed by the given handler.
func NewLogger(h slog.Handler) Logger {
	return &logger{slog.New(h)}
}

func (l *logger) Handler() slog.Handler { return l.inner.Handler() }

func (l *logger) With(ctx ...any) Logger {
	return &logger{l.inner.With(ctx...)}
}

func (l *logger) Enabled(level slog.Level) bool {
	return l.inner.Enabled(context.Background(), level)
}

func (l *logger) write(level slog.Level, msg string, attrs ...any) {
	if !l.Enabled(level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(attrs...)
	l.inner.Handler().Handle(context.Background(), r)
}

func (l *logger) Trace(msg string, ctx ...any) { l.write(LevelTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.write(LevelDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.write(LevelInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.write(LevelWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.write(LevelError, msg, ctx...) }

func (l *logger) Crit(msg string, ctx ...any) {
	l.write(LevelCrit, msg, ctx...)
	os.Exit(1)
}

var root atomic.Pointer[logger]

func init() {
	root.Store(&logger{slog.New(DiscardHandler())})
}

// SetDefault sets the handler of the process-wide root logger.
func SetDefault(h slog.Handler) {
	root.Store(&logger{slog.New(h)})
}

// Root returns the process-wide root logger.
func Root() Logger { return root.Load() }

// WithContext returns a logger derived from the root logger carrying the
// given attributes. The root handler is resolved lazily, so package level
// loggers created before SetDefault still write to the configured handler.
func WithContext(ctx ...any) Logger {
	return &lazyLogger{ctx: ctx}
}

type lazyLogger struct {
	ctx []any
}

func (l *lazyLogger) resolved() Logger            { return Root().With(l.ctx...) }
func (l *lazyLogger) Handler() slog.Handler       { return l.resolved().Handler() }
func (l *lazyLogger) With(ctx ...any) Logger      { return l.resolved().With(ctx...) }
func (l *lazyLogger) Enabled(lv slog.Level) bool  { return l.resolved().Enabled(lv) }
func (l *lazyLogger) Trace(msg string, ctx ...any) { l.resolved().Trace(msg, ctx...) }
func (l *lazyLogger) Debug(msg string, ctx ...any) { l.resolved().Debug(msg, ctx...) }
func (l *lazyLogger) Info(msg string, ctx ...any)  { l.resolved().Info(msg, ctx...) }
func (l *lazyLogger) Warn(msg string, ctx ...any)  { l.resolved().Warn(msg, ctx...) }
func (l *lazyLogger) Error(msg string, ctx ...any) { l.resolved().Error(msg, ctx...) }
func (l *lazyLogger) Crit(msg string, ctx ...any)  { l.resolved().Crit(msg, ctx...) }

// Convenience accessors on the root logger.

func Trace(msg string, ctx ...any) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...any) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...any)  { Root().Crit(msg, ctx...) }
