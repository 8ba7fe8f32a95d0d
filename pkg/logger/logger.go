// Package logger defines the logging interface used across the engine, with
// a zerolog-backed default implementation.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging surface the engine needs. Args
// are alternating key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type zeroLogger struct {
	l zerolog.Logger
}

// New returns a zerolog-backed Logger writing to w; nil falls back to
// stderr.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &zeroLogger{l: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zeroLogger{l: zerolog.Nop()}
}

func (z *zeroLogger) Error(msg string, args ...any) { emit(z.l.Error(), msg, args) }
func (z *zeroLogger) Warn(msg string, args ...any)  { emit(z.l.Warn(), msg, args) }
func (z *zeroLogger) Info(msg string, args ...any)  { emit(z.l.Info(), msg, args) }
func (z *zeroLogger) Debug(msg string, args ...any) { emit(z.l.Debug(), msg, args) }

func emit(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
