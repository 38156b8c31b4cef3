package scheduler

import (
	"sync"

	"github.com/AAs6395/medremind/internal/metrics"
	"github.com/AAs6395/medremind/internal/reminder"
)

// Tracker records which (reminder, threshold) alerts have already fired.
// It lives for the lifetime of the process only; a restart forgets all keys,
// so an alert whose window is still open may fire once more after a restart.
type Tracker struct {
	mu    sync.Mutex
	fired map[reminder.Key]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		fired: make(map[reminder.Key]struct{}),
	}
}

// HasFired reports whether the key's alert has already been dispatched.
func (t *Tracker) HasFired(key reminder.Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.fired[key]
	return ok
}

// MarkFired records a dispatched alert.
func (t *Tracker) MarkFired(key reminder.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fired[key] = struct{}{}
	metrics.SetTrackerKeys(len(t.fired))
}

// Clear removes every key belonging to the reminder id. Called when the
// backend stops returning a reminder, so a recreated reminder with the same
// id starts with a clean slate.
func (t *Tracker) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, th := range reminder.Thresholds {
		delete(t.fired, reminder.Key{ID: id, Threshold: th})
	}
	metrics.SetTrackerKeys(len(t.fired))
}

// Len returns the number of fired keys held.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fired)
}
