package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fadedpez/ebucks/internal/types"
	"github.com/rs/zerolog"
)

// Level represents a logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zerologLevels = map[Level]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// ParseLevel converts a level name such as "debug" or "warn" to a Level.
// Unknown names fall back to INFO.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger is a levelled printf-style logger on top of zerolog
type Logger struct {
	zl    zerolog.Logger
	level Level
}

// NewLogger creates a new logger instance writing JSON lines to stdout
func NewLogger(level Level) *Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewConsoleLogger creates a logger with human-readable output for development
func NewConsoleLogger(level Level) *Logger {
	return NewLoggerWithWriter(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}, level)
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(w io.Writer, level Level) *Logger {
	zl := zerolog.New(w).
		Level(zerologLevels[level]).
		With().
		Timestamp().
		Str("service", "ebucks").
		Logger()
	return &Logger{zl: zl, level: level}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), level: ERROR + 1}
}

// With returns a child logger carrying an extra field
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		zl:    l.zl.With().Str(key, value).Logger(),
		level: l.level,
	}
}

// WithComponent tags log lines with the emitting component
func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// WithUser tags log lines with the user whose ledger is being touched
func (l *Logger) WithUser(userID string) *Logger {
	return l.With("user_id", userID)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level <= DEBUG {
		l.zl.Debug().Msg(fmt.Sprintf(format, v...))
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level <= INFO {
		l.zl.Info().Msg(fmt.Sprintf(format, v...))
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	if l.level <= WARN {
		l.zl.Warn().Msg(fmt.Sprintf(format, v...))
	}
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level <= ERROR {
		l.zl.Error().Msg(fmt.Sprintf(format, v...))
	}
}

// LogError logs an EngineError with its code and cause as structured fields
func (l *Logger) LogError(err error) {
	if err == nil || l.level > ERROR {
		return
	}

	var engineErr *types.EngineError
	if types.As(err, &engineErr) {
		event := l.zl.Error().
			Str("code", string(engineErr.Code)).
			Str("message", engineErr.Message)
		if engineErr.Err != nil {
			event = event.AnErr("cause", engineErr.Err)
		}
		event.Msg("engine error occurred")
		return
	}

	l.zl.Error().Err(err).Msg("unexpected error")
}

// Default logger instance
var Default = NewLogger(INFO)
