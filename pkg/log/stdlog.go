package log

import (
	stdlog "log"
	"strings"
)

// loggerWriter adapts a Logger to io.Writer for std-log redirection.
type loggerWriter struct {
	logger Logger
	level  Level
}

func (w loggerWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// RedirectStdLog routes the standard library's default logger (used by
// Pebble, among others) through the given Logger at InfoLevel.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(loggerWriter{logger: logger, level: InfoLevel})
}

// ToStdLogger returns a *log.Logger that forwards to the given Logger at the
// given level, for libraries that accept a standard logger.
func ToStdLogger(logger Logger, level Level) *stdlog.Logger {
	return stdlog.New(loggerWriter{logger: logger, level: level}, "", 0)
}
