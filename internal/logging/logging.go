// Package logging builds the process logger.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the logger format and level
type Options struct {
	Verbose bool // debug level
	JSON    bool // JSON lines instead of the console writer
}

// New returns a timestamped logger writing to w. Info is the default level.
func New(w io.Writer, opts Options) zerolog.Logger {
	if !opts.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
