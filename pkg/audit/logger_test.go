package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	before := time.Now().UTC()
	e := NewEntry("admin", ActionUserRoleChanged, "alice", "user -> developer")

	assert.Len(t, e.ID, 32)
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.False(t, e.Timestamp.Before(before))
	assert.Equal(t, "alice", e.Target)

	other := NewEntry("admin", ActionUserRoleChanged, "alice", "")
	assert.NotEqual(t, e.ID, other.ID)
}

func TestMemoryLogger_FilterAndLimit(t *testing.T) {
	ctx := context.Background()
	logger := NewMemoryLogger()

	require.NoError(t, logger.Record(ctx, NewEntry("admin", ActionPluginRejected, "a.b", "one")))
	require.NoError(t, logger.Record(ctx, NewEntry("root", ActionPluginPublished, "a.b", "")))
	require.NoError(t, logger.Record(ctx, NewEntry("admin", ActionPluginRejected, "c.d", "two")))

	tests := []struct {
		name    string
		filter  Filter
		targets []string
	}{
		{"all", Filter{}, []string{"a.b", "a.b", "c.d"}},
		{"by actor", Filter{Actor: "admin"}, []string{"a.b", "c.d"}},
		{"by action", Filter{Action: ActionPluginPublished}, []string{"a.b"}},
		{"by target", Filter{Target: "c.d"}, []string{"c.d"}},
		{"limit", Filter{Limit: 2}, []string{"a.b", "a.b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := logger.List(ctx, tt.filter)
			require.NoError(t, err)
			var targets []string
			for _, e := range entries {
				targets = append(targets, e.Target)
			}
			assert.Equal(t, tt.targets, targets)
		})
	}
}

func TestMemoryLogger_EntriesAreImmutable(t *testing.T) {
	ctx := context.Background()
	logger := NewMemoryLogger()

	e := NewEntry("admin", ActionPluginDeleted, "a.b", "spam")
	require.NoError(t, logger.Record(ctx, e))
	e.Reason = "changed"

	entries, err := logger.List(ctx, Filter{})
	require.NoError(t, err)
	entries[0].Actor = "mallory"

	again, err := logger.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "spam", again[0].Reason)
	assert.Equal(t, "admin", again[0].Actor)
}

func TestMemoryLogger_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	logger := NewMemoryLogger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = logger.Record(ctx, NewEntry("admin", ActionPluginEdited, fmt.Sprintf("p%d", i), ""))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, logger.Len())
	entries, err := logger.List(ctx, Filter{})
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.ID] = true
	}
	assert.Len(t, seen, 50)
}

func TestFilterTimeRange(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	since := base
	until := base.Add(time.Hour)
	f := Filter{Since: &since, Until: &until}

	assert.True(t, f.Matches(&Entry{Timestamp: base.Add(30 * time.Minute)}))
	assert.False(t, f.Matches(&Entry{Timestamp: base.Add(-time.Second)}))
	assert.False(t, f.Matches(&Entry{Timestamp: base.Add(2 * time.Hour)}))
}
