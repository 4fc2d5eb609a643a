// Package logutil provides the relay's structured logger.
package logutil

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, zerolog.InfoLevel, "json")
)

// Configure sets the global level and output format (json or console).
func Configure(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	logger = newLogger(os.Stderr, lvl, format)
	mu.Unlock()
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = logger.Output(w)
	mu.Unlock()
}

// Logger returns the shared zerolog logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	l := Logger()
	return l.With().Str("component", name).Logger()
}

// Info logs a structured info message.
func Info(msg string, fields map[string]interface{}) {
	l := Logger()
	l.Info().Fields(fields).Msg(msg)
}

// Warn logs a structured warning including the error string when present.
func Warn(msg string, err error, fields map[string]interface{}) {
	l := Logger()
	evt := l.Warn().Fields(fields)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg(msg)
}

// Error logs a structured error message including the error string.
func Error(msg string, err error, fields map[string]interface{}) {
	l := Logger()
	evt := l.Error().Fields(fields)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg(msg)
}

func newLogger(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
