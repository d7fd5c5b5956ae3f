package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	store(newLogger(os.Stdout, "console"))
}

func newLogger(w io.Writer, format string) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}

	return zerolog.New(w).With().Timestamp().Str("app", "shellpilot").Logger()
}

func current() *zerolog.Logger {
	return defaultLogger.Load()
}

func store(l zerolog.Logger) {
	defaultLogger.Store(&l)
}

// Init configures output format ("console" or "json") and the minimum level.
// Like SetOutput and SetLevel it is safe to call while other goroutines log.
func Init(level string, format string) {
	store(newLogger(os.Stdout, format).Level(ParseLevel(level).zerolog()))
}

func SetOutput(w io.Writer) {
	store(current().Output(w))
}

func SetLevel(level LogLevel) {
	store(current().Level(level.zerolog()))
}

func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func Debug(format string, args ...interface{}) {
	current().Debug().Msgf(format, args...)
}

func Info(format string, args ...interface{}) {
	current().Info().Msgf(format, args...)
}

func Warn(format string, args ...interface{}) {
	current().Warn().Msgf(format, args...)
}

func Error(format string, args ...interface{}) {
	current().Error().Msgf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	current().Fatal().Msgf(format, args...)
}
