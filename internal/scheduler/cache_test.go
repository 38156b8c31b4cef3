package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/reminder"
)

type fakeSource struct {
	mu    sync.Mutex
	items []reminder.Reminder
	err   error
}

func (f *fakeSource) ListReminders(ctx context.Context) ([]reminder.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]reminder.Reminder(nil), f.items...), nil
}

func (f *fakeSource) set(items []reminder.Reminder, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = items
	f.err = err
}

func TestCache_RefreshReplacesSnapshot(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{
		{ID: "rem_2", Title: "Insulin", DueAt: due.Add(time.Hour)},
		{ID: "rem_1", Title: "Aspirin", DueAt: due},
	}}
	cache := NewCache(src, zap.NewNop())

	require.NoError(t, cache.Refresh(context.Background()))

	snap := cache.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "rem_1", snap[0].ID, "snapshot is sorted by due time")
	assert.Equal(t, "rem_2", snap[1].ID)
	assert.False(t, cache.LastSync().IsZero())

	src.set([]reminder.Reminder{{ID: "rem_3", Title: "Statin", DueAt: due}}, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	snap = cache.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "rem_3", snap[0].ID)
}

func TestCache_FailedRefreshKeepsSnapshot(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", DueAt: due}}}
	cache := NewCache(src, zap.NewNop())
	require.NoError(t, cache.Refresh(context.Background()))

	src.set(nil, errors.New("backend down"))

	err := cache.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, cache.Len(), "stale data beats no data")

	got, ok := cache.Get("rem_1")
	require.True(t, ok)
	assert.Equal(t, "rem_1", got.ID)
}

func TestCache_RemovalHook(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{
		{ID: "rem_1", DueAt: due},
		{ID: "rem_2", DueAt: due},
	}}
	cache := NewCache(src, zap.NewNop())

	var removed []string
	cache.OnRemoved(func(id string) { removed = append(removed, id) })

	require.NoError(t, cache.Refresh(context.Background()))
	assert.Empty(t, removed)

	src.set([]reminder.Reminder{{ID: "rem_2", DueAt: due}}, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	assert.Equal(t, []string{"rem_1"}, removed)
}

func TestCache_MarkNotified(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", DueAt: due}}}
	cache := NewCache(src, zap.NewNop())
	require.NoError(t, cache.Refresh(context.Background()))

	cache.MarkNotified("rem_1")

	got, ok := cache.Get("rem_1")
	require.True(t, ok)
	assert.True(t, got.Notified)

	// Unknown ids are ignored.
	cache.MarkNotified("rem_404")
	assert.Equal(t, 1, cache.Len())
}

func TestCache_EmptyBeforeFirstRefresh(t *testing.T) {
	cache := NewCache(&fakeSource{}, zap.NewNop())

	assert.Empty(t, cache.Snapshot())
	assert.Zero(t, cache.Len())
	assert.True(t, cache.LastSync().IsZero())
}
