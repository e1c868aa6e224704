package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var zlog = zerolog.New(os.Stdout).With().Timestamp().Logger()

// InitStructured initializes the structured zerolog logger
func InitStructured(env string) {
	InitWithWriter(env, nil)
}

// InitWithWriter initializes the logger with an explicit writer (nil picks stdout by env)
func InitWithWriter(env string, w io.Writer) {
	if w == nil {
		if env == "development" || env == "dev" || env == "local" {
			// Pretty console output for development
			w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		} else {
			// JSON output for production (machine-readable)
			w = os.Stdout
		}
	}

	zlog = zerolog.New(w).With().
		Timestamp().
		Str("service", "angple-collab").
		Logger()

	zerolog.TimeFieldFormat = time.RFC3339
}

// SetLevel parses and applies a global log level, falling back to info
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// GetLogger returns the global zerolog logger
func GetLogger() *zerolog.Logger {
	return &zlog
}

// WithRequestID returns a logger with request_id field
func WithRequestID(requestID string) *zerolog.Logger {
	l := zlog.With().Str("request_id", requestID).Logger()
	return &l
}

// WithComponent returns a logger tagged with a component name
func WithComponent(name string) *zerolog.Logger {
	l := zlog.With().Str("component", name).Logger()
	return &l
}

// Info logs a formatted message at info level
func Info(format string, args ...interface{}) {
	zlog.Info().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a formatted message at warn level
func Warn(format string, args ...interface{}) {
	zlog.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs a formatted message at error level
func Error(format string, args ...interface{}) {
	zlog.Error().Msg(fmt.Sprintf(format, args...))
}
