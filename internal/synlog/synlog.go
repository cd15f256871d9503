// Package synlog builds the structured logger shared by the search driver
// and the CLI. It is a thin factory over logiface with its zerolog backend;
// callers get field-builder chaining (.Str/.Int/.Err) terminated by .Log(msg)
// and never touch zerolog directly.
package synlog

import (
	"io"

	izerolog "github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the concrete logger type handed out by New. Exposed as an alias
// so packages taking a logger in their config don't need to repeat the
// logiface/izerolog type parameters.
type Logger = logiface.Logger[*izerolog.Event]

// New returns a logger writing structured lines to w at the given level.
func New(w io.Writer, level logiface.Level) *Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return izerolog.L.New(
		izerolog.L.WithZerolog(zl),
		izerolog.L.WithLevel(level),
	)
}

// Default returns an info-level logger on w.
func Default(w io.Writer) *Logger {
	return New(w, logiface.LevelInformational)
}

// Discard returns a logger that drops everything, for tests and for callers
// that pass no logger of their own.
func Discard() *Logger {
	return New(io.Discard, logiface.LevelDisabled)
}
