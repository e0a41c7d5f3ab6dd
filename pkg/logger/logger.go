package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "civic-document-service"

// New returns the process logger. pretty switches stdout to console output.
func New(level string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(level, w).With().
		Caller().
		Str("service", serviceName).
		Logger()
}

// NewWithWriter is New without caller and service fields, for tests and tools.
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

// WithComponent tags a child logger with the owning component.
func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// parseLevel falls back to info for unknown or empty levels. Levels below
// debug are not exposed.
func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel || l < zerolog.DebugLevel {
		return zerolog.InfoLevel
	}
	return l
}
