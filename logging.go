// Package-level structured logging configuration.
//
// The reactor logs through github.com/joeycumines/logiface, backed by
// github.com/joeycumines/stumpy's JSON event writer. A package-level default
// logger (writing to io.Discard until configured) lets every component log
// without threading a logger through every constructor; WithLogger and
// WithTimerLogger override it per Dispatcher/TimerWheel.
package reactor

import (
	"io"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type used throughout the reactor: a
// logiface.Logger bound to stumpy's Event/Writer implementation.
type Logger = logiface.Logger[*stumpy.Event]

var defaultLoggerV atomic.Pointer[Logger]

func init() {
	defaultLoggerV.Store(stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(io.Discard))))
}

// SetDefaultLogger replaces the package-level default logger used by
// Dispatcher and TimerWheel instances constructed without an explicit
// WithLogger/WithTimerLogger option.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		l = stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(io.Discard)))
	}
	defaultLoggerV.Store(l)
}

// NewLogger builds a Logger writing newline-delimited JSON to w, convenience
// for the common case (e.g. SetDefaultLogger(reactor.NewLogger(os.Stderr))).
func NewLogger(w io.Writer) *Logger {
	return stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(w)))
}

func defaultLogger() *Logger {
	return defaultLoggerV.Load()
}
