// Package logger is the debug collaborator of quarry: the connection manager,
// transactions and the builder report through Logger, and Sanitizer masks
// sensitive binds before they reach it.
//
// Levels used by quarry:
//
//	Debug  every statement while Config.Debug is on, transactions, plans
//	Info   handles opened and closed
//	Warn   reconnects, cache store failures, plans with a full scan or filesort
//	Error  rollbacks that failed while unwinding an error
package logger

import "log/slog"

// Logger takes a message and alternating key-value pairs, as log/slog does.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger drops everything. It is used when no logger is configured.
type NoopLogger struct{}

func (n *NoopLogger) Debug(string, ...any) {}
func (n *NoopLogger) Info(string, ...any)  {}
func (n *NoopLogger) Warn(string, ...any)  {}
func (n *NoopLogger) Error(string, ...any) {}

// SlogAdapter sends quarry logs to a *slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps l; a nil l uses slog.Default().
func NewSlogAdapter(l *slog.Logger) *SlogAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &SlogAdapter{logger: l}
}

func (a *SlogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *SlogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
