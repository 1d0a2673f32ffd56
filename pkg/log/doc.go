// Package log provides Stele's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that preserves the
// formatter/outputs pipeline, so output stays consistent across the codebase
// while the slog ecosystem remains reachable.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("runtime"))
//	l.Info("process restored", log.Int("records", 12))
//
// # Interop
//
// To integrate with libraries expecting *log.Logger (Pebble's internal
// logging, for example), use RedirectStdLog or ToStdLogger.
package log
