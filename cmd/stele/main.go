package main

import (
	"os"

	"github.com/okelo/stele/internal/cmd/admin"
	logpkg "github.com/okelo/stele/pkg/log"
)

func main() {
	// Respect STELE_LOG_LEVEL for CLI output.
	level := os.Getenv("STELE_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	var formatter logpkg.Formatter = &logpkg.TextFormatter{}
	if os.Getenv("STELE_LOG_FORMAT") == "json" {
		formatter = &logpkg.JSONFormatter{}
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(formatter),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger.
	logpkg.RedirectStdLog(logger)

	if err := admin.NewRoot(logger).Execute(); err != nil {
		os.Exit(1)
	}
}
