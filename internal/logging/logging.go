// Package logging builds the zerolog logger shared by the CLI and the
// reconciliation engine.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Options select the logger's verbosity and format.
type Options struct {
	// Verbose enables debug-level events.
	Verbose bool
	// JSON emits one JSON object per event instead of console lines.
	JSON bool
	// Quiet drops everything below warnings.
	Quiet bool
}

// New returns a logger writing to w. Progress events are logged at info
// level; per-attempt polling and skipped calls at debug.
func New(w io.Writer, opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case opts.Quiet:
		level = zerolog.WarnLevel
	case opts.Verbose:
		level = zerolog.DebugLevel
	}

	out := w
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
