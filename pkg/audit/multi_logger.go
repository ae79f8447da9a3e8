package audit

import (
	"context"
	"fmt"
)

// MultiLogger records to multiple audit loggers and lists from the first
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Record writes to every logger, continuing past failures, and returns the first error
func (m *MultiLogger) Record(ctx context.Context, entry *Entry) error {
	var firstErr error

	for _, logger := range m.loggers {
		if err := logger.Record(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// List reads from the primary logger
func (m *MultiLogger) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	if len(m.loggers) == 0 {
		return nil, nil
	}
	return m.loggers[0].List(ctx, filter)
}

// Close closes all loggers
func (m *MultiLogger) Close() error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close logger: %w", err)
		}
	}
	return firstErr
}
