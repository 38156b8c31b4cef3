package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/metrics"
	"github.com/AAs6395/medremind/internal/reminder"
)

// Source lists the current reminder set. The backend client implements it.
type Source interface {
	ListReminders(ctx context.Context) ([]reminder.Reminder, error)
}

// Cache holds the agent's snapshot of the backend reminder set. Refreshes
// replace the snapshot wholesale; a failed refresh keeps the previous one.
type Cache struct {
	source Source
	logger *zap.Logger

	mu        sync.RWMutex
	items     map[string]reminder.Reminder
	lastSync  time.Time
	onRemoved func(id string)
}

// NewCache creates an empty cache over the given source.
func NewCache(source Source, logger *zap.Logger) *Cache {
	return &Cache{
		source: source,
		logger: logger,
		items:  make(map[string]reminder.Reminder),
	}
}

// OnRemoved registers a hook invoked with the id of every reminder that a
// refresh no longer returns. The scheduler wires this to Tracker.Clear so
// deletion invalidates fired keys.
func (c *Cache) OnRemoved(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRemoved = fn
}

// Refresh replaces the snapshot with the backend's current reminder set.
// On error the previous snapshot stays authoritative.
func (c *Cache) Refresh(ctx context.Context) error {
	list, err := c.source.ListReminders(ctx)
	if err != nil {
		metrics.RecordCacheRefresh(false)
		c.logger.Warn("Reminder refresh failed, keeping previous snapshot", zap.Error(err))
		return err
	}

	next := make(map[string]reminder.Reminder, len(list))
	for _, r := range list {
		next[r.ID] = r
	}

	c.mu.Lock()
	var removed []string
	for id := range c.items {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	c.items = next
	c.lastSync = time.Now()
	hook := c.onRemoved
	c.mu.Unlock()

	if hook != nil {
		for _, id := range removed {
			hook(id)
		}
	}

	metrics.RecordCacheRefresh(true)
	metrics.SetCachedReminders(len(next))
	c.logger.Debug("Reminder cache refreshed",
		zap.Int("reminders", len(next)),
		zap.Int("removed", len(removed)),
	)

	return nil
}

// Snapshot returns the cached reminders sorted by due time.
func (c *Cache) Snapshot() []reminder.Reminder {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]reminder.Reminder, 0, len(c.items))
	for _, r := range c.items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out
}

// MarkNotified flips the local copy's notified flag without waiting for the
// backend to confirm.
func (c *Cache) MarkNotified(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.items[id]; ok {
		r.Notified = true
		c.items[id] = r
	}
}

// Get returns the cached reminder for id.
func (c *Cache) Get(id string) (reminder.Reminder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.items[id]
	return r, ok
}

// Len returns the number of cached reminders.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// LastSync returns the time of the last successful refresh.
func (c *Cache) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSync
}
