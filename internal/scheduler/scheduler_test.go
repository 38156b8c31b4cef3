package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/alert"
	apperrors "github.com/AAs6395/medremind/internal/errors"
	"github.com/AAs6395/medremind/internal/reminder"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []alert.Event
}

func (d *recordingDispatcher) Dispatch(ev alert.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *recordingDispatcher) snapshot() []alert.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]alert.Event(nil), d.events...)
}

type recordingAcks struct {
	mu  sync.Mutex
	ids []string
}

func (a *recordingAcks) Submit(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, id)
}

func (a *recordingAcks) snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.ids...)
}

func newTestScheduler(src *fakeSource) (*Scheduler, *Cache, *Tracker, *recordingDispatcher, *recordingAcks) {
	cache := NewCache(src, zap.NewNop())
	tracker := NewTracker()
	cache.OnRemoved(tracker.Clear)
	disp := &recordingDispatcher{}
	acks := &recordingAcks{}
	s := NewScheduler(cache, tracker, disp, acks, zap.NewNop())
	return s, cache, tracker, disp, acks
}

func TestScheduler_WindowScenario(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", Title: "Aspirin", DueAt: due}}}
	s, cache, _, disp, acks := newTestScheduler(src)
	require.NoError(t, cache.Refresh(context.Background()))

	assert.Equal(t, 0, s.Tick(due.Add(-10*time.Minute)), "long before the window")
	assert.Equal(t, 1, s.Tick(due.Add(-4*time.Minute-30*time.Second)), "inside the pre-alert window")
	assert.Equal(t, 0, s.Tick(due.Add(-4*time.Minute-20*time.Second)), "pre-alert key already fired")
	assert.Equal(t, 1, s.Tick(due.Add(30*time.Second)), "inside the due-alert window")
	assert.Equal(t, 0, s.Tick(due.Add(61*time.Second)), "grace window closed")

	events := disp.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, reminder.PreAlert, events[0].Threshold)
	assert.Equal(t, reminder.DueAlert, events[1].Threshold)
	assert.Equal(t, "rem_1", events[0].Reminder.ID)

	assert.Equal(t, []string{"rem_1", "rem_1"}, acks.snapshot())
}

func TestScheduler_ExactlyAtDueFiresPreAlert(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", DueAt: due}}}
	s, cache, _, disp, _ := newTestScheduler(src)
	require.NoError(t, cache.Refresh(context.Background()))

	assert.Equal(t, 1, s.Tick(due))

	events := disp.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, reminder.PreAlert, events[0].Threshold,
		"the due instant belongs to the pre-alert window, not the due window")
}

func TestScheduler_MissedWindowsAreNotCaughtUp(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", DueAt: due}}}
	s, cache, _, disp, _ := newTestScheduler(src)
	require.NoError(t, cache.Refresh(context.Background()))

	// First evaluation happens after both windows have passed, as if the
	// agent was suspended. Nothing fires late.
	assert.Equal(t, 0, s.Tick(due.Add(2*time.Minute)))
	assert.Empty(t, disp.snapshot())
}

func TestScheduler_DeletionClearsFiredKeys(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", DueAt: due}}}
	s, cache, tracker, disp, _ := newTestScheduler(src)
	require.NoError(t, cache.Refresh(context.Background()))

	inWindow := due.Add(-time.Minute)
	require.Equal(t, 1, s.Tick(inWindow))
	require.True(t, tracker.HasFired(reminder.Key{ID: "rem_1", Threshold: reminder.PreAlert}))

	// Deleted on the backend: the refresh drops it and clears its keys.
	src.set(nil, nil)
	require.NoError(t, cache.Refresh(context.Background()))
	assert.False(t, tracker.HasFired(reminder.Key{ID: "rem_1", Threshold: reminder.PreAlert}))
	assert.Equal(t, 0, s.Tick(inWindow), "a deleted reminder cannot fire")

	// Recreated under the same id, it alerts again from scratch.
	src.set([]reminder.Reminder{{ID: "rem_1", DueAt: due}}, nil)
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, 1, s.Tick(inWindow))

	assert.Len(t, disp.snapshot(), 2)
}

func TestScheduler_SameDueAtIndependentReminders(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{
		{ID: "rem_1", Title: "Aspirin", DueAt: due},
		{ID: "rem_2", Title: "Statin", DueAt: due},
	}}
	s, cache, _, disp, _ := newTestScheduler(src)
	require.NoError(t, cache.Refresh(context.Background()))

	assert.Equal(t, 2, s.Tick(due.Add(-time.Minute)), "shared due times do not share keys")

	seen := map[string]bool{}
	for _, ev := range disp.snapshot() {
		seen[ev.Reminder.ID] = true
		assert.Equal(t, reminder.PreAlert, ev.Threshold)
	}
	assert.True(t, seen["rem_1"])
	assert.True(t, seen["rem_2"])
}

func TestScheduler_MarksCacheNotified(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", DueAt: due}}}
	s, cache, _, _, _ := newTestScheduler(src)
	require.NoError(t, cache.Refresh(context.Background()))

	s.Tick(due.Add(-time.Minute))

	got, ok := cache.Get("rem_1")
	require.True(t, ok)
	assert.True(t, got.Notified, "the local copy flips optimistically")
}

func TestScheduler_CustomWindows(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", DueAt: due}}}
	s, cache, _, _, _ := newTestScheduler(src)
	s.WithWindows(reminder.Windows{Lead: 10 * time.Minute, Grace: 2 * time.Minute})
	require.NoError(t, cache.Refresh(context.Background()))

	assert.Equal(t, 1, s.Tick(due.Add(-8*time.Minute)), "widened lead window")
	assert.Equal(t, 1, s.Tick(due.Add(90*time.Second)), "widened grace window")
}

func TestScheduler_StartStop(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []reminder.Reminder{{ID: "rem_1", DueAt: due}}}

	s, cache, _, disp, _ := newTestScheduler(src)
	s.WithInterval(10 * time.Millisecond).WithClock(func() time.Time {
		return due.Add(-time.Minute)
	})
	require.NoError(t, cache.Refresh(context.Background()))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrSchedulerRunning.Code, apperrors.GetCode(err))

	assert.Eventually(t, func() bool {
		return len(disp.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond, "the loop dispatches once and dedupes after")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	// Stopping again is harmless.
	require.NoError(t, s.Stop())
}
