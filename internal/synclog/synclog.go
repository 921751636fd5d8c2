// Package synclog provides the structured logging setup for the sync
// engine. The teacher (a terminal UI) has no structured logging
// dependency of its own since console output is largely suppressed in
// favor of the TUI; this package instead follows zerolog, the logging
// library used by the other audio-domain repo in the example pack
// (edumarques81/stellar-volumio-audioplayer-backend).
package synclog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger used throughout the sync engine.
type Logger = zerolog.Logger

// New builds a console-and-file logger. If logFile is empty, only the
// console sink is attached.
func New(logFile string, debug bool) (Logger, func() error, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}

	var writers []io.Writer
	writers = append(writers, console)

	closer := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}
		writers = append(writers, f)
		closer = f.Close
	}

	multi := zerolog.MultiLevelWriter(writers...)
	logger := zerolog.New(multi).Level(level).With().Timestamp().Logger()

	return logger, closer, nil
}

// Component returns a child logger tagged with the given component name,
// following the teacher's convention of attaching a stable identifying
// field to every subsystem's logger.
func Component(l Logger, component string) Logger {
	return l.With().Str("component", component).Logger()
}

// Op returns a child logger additionally tagged with the operation name.
func Op(l Logger, op string) Logger {
	return l.With().Str("op", op).Logger()
}
