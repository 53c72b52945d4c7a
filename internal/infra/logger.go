package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger writing to stdout.
func NewLogger(appEnv string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, appEnv)
}

// NewLoggerTo is NewLogger with an explicit sink. The assistant command logs to
// stderr because stdout carries audio.
func NewLoggerTo(w io.Writer, appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}

	return logger
}

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger

// LoggerOrNop dereferences l, falling back to a disabled logger.
func LoggerOrNop(l *Logger) Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}
