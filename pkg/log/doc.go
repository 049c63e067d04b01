// Package log provides Drumbeat's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by logrus, so output can be
// rendered either as JSON lines or as human readable text.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat(log.FormatText),
//	    log.WithOutput(os.Stderr),
//	)
//	l = l.With(log.Component("server"), log.Str("queue", "builds"))
//	l.Info("server started", log.Int("port", 3000))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config. RedirectStdLog
// routes the standard library logger (used by some dependencies) through a
// Logger at info level.
package log
