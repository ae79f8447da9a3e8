package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLogger struct {
	NoOpLogger
}

func (failingLogger) Record(context.Context, *Entry) error { return errors.New("unavailable") }

func TestMultiLogger_RecordsToAll(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryLogger()
	secondary := NewMemoryLogger()
	m := NewMultiLogger(primary, secondary)

	require.NoError(t, m.Record(ctx, NewEntry("admin", ActionPluginEdited, "a.b", "")))

	assert.Equal(t, 1, primary.Len())
	assert.Equal(t, 1, secondary.Len())

	entries, err := m.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, m.Close())
}

func TestMultiLogger_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	backup := NewMemoryLogger()
	m := NewMultiLogger(failingLogger{}, backup)

	err := m.Record(ctx, NewEntry("admin", ActionPluginEdited, "a.b", ""))
	assert.Error(t, err)
	assert.Equal(t, 1, backup.Len())
}

func TestMultiLogger_Empty(t *testing.T) {
	m := NewMultiLogger()
	entries, err := m.List(context.Background(), Filter{})
	assert.NoError(t, err)
	assert.Nil(t, entries)
}
