package audit

import (
	"context"
	"sync"
)

// Logger is the interface for audit logging
type Logger interface {
	// Record appends an entry. Entries are never modified afterwards.
	Record(ctx context.Context, entry *Entry) error

	// List returns entries in append order.
	List(ctx context.Context, filter Filter) ([]*Entry, error)

	// Close closes the logger and flushes any buffered entries
	Close() error
}

// MemoryLogger keeps entries in process memory
type MemoryLogger struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryLogger creates an empty in-memory audit log
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Record implements Logger
func (l *MemoryLogger) Record(_ context.Context, entry *Entry) error {
	cp := *entry
	l.mu.Lock()
	l.entries = append(l.entries, &cp)
	l.mu.Unlock()
	return nil
}

// List implements Logger
func (l *MemoryLogger) List(_ context.Context, filter Filter) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return filter.apply(l.entries), nil
}

// Len returns the number of recorded entries
func (l *MemoryLogger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close implements Logger
func (l *MemoryLogger) Close() error {
	return nil
}

// NoOpLogger discards entries
type NoOpLogger struct{}

// Record implements Logger
func (NoOpLogger) Record(context.Context, *Entry) error { return nil }

// List implements Logger
func (NoOpLogger) List(context.Context, Filter) ([]*Entry, error) { return nil, nil }

// Close implements Logger
func (NoOpLogger) Close() error { return nil }
