package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/alert"
	apperrors "github.com/AAs6395/medremind/internal/errors"
	"github.com/AAs6395/medremind/internal/metrics"
	"github.com/AAs6395/medremind/internal/reminder"
)

// Dispatcher turns an alert event into side effects. Dispatch must return
// promptly; deliveries happen on the dispatcher's own goroutines.
type Dispatcher interface {
	Dispatch(ev alert.Event)
}

// AckSubmitter queues a best-effort notified acknowledgement for a reminder.
// Submit never blocks.
type AckSubmitter interface {
	Submit(id string)
}

// Scheduler runs the alert evaluation loop. Once per tick it walks the
// cached reminders, checks each threshold window against the clock and the
// tracker, and dispatches whatever is due. The tick goroutine never performs
// network calls; dispatch and acknowledgement are fire-and-forget.
type Scheduler struct {
	cache      *Cache
	tracker    *Tracker
	dispatcher Dispatcher
	acks       AckSubmitter
	logger     *zap.Logger
	interval   time.Duration
	windows    reminder.Windows
	now        func() time.Time

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with the reference cadence of one tick
// per minute.
func NewScheduler(cache *Cache, tracker *Tracker, dispatcher Dispatcher, acks AckSubmitter, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cache:      cache,
		tracker:    tracker,
		dispatcher: dispatcher,
		acks:       acks,
		logger:     logger,
		interval:   60 * time.Second,
		windows:    reminder.DefaultWindows(),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// WithInterval sets the tick cadence.
func (s *Scheduler) WithInterval(interval time.Duration) *Scheduler {
	s.interval = interval
	return s
}

// WithWindows sets the alert window tunables.
func (s *Scheduler) WithWindows(w reminder.Windows) *Scheduler {
	s.windows = w
	return s
}

// WithClock replaces the wall clock. Tests drive ticks deterministically
// through this.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Windows returns the active window tunables.
func (s *Scheduler) Windows() reminder.Windows {
	return s.windows
}

// Start launches the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return apperrors.ErrSchedulerRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("Starting alert scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("pre_alert_lead", s.windows.Lead),
		zap.Duration("due_alert_grace", s.windows.Grace),
	)

	s.wg.Add(1)
	go s.run(ctx)

	return nil
}

// Stop halts the tick loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Alert scheduler stopped")

	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// run is the main tick loop.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Evaluate immediately on start
	s.safeTick()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.safeTick()
		}
	}
}

func (s *Scheduler) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in scheduler tick", zap.Any("recover", r))
		}
	}()

	start := time.Now()
	dispatched := s.Tick(s.now())
	metrics.RecordTick(time.Since(start))

	if dispatched > 0 {
		s.logger.Info("Tick dispatched alerts", zap.Int("count", dispatched))
	}
}

// Tick runs one evaluation pass at the given instant and returns the number
// of alerts dispatched. For every cached reminder each threshold is checked
// in fixed order, PreAlert before DueAlert; a threshold fires only when the
// instant falls inside its window and its key has not fired before.
func (s *Scheduler) Tick(now time.Time) int {
	dispatched := 0

	for _, r := range s.cache.Snapshot() {
		for _, th := range reminder.Thresholds {
			if !s.windows.Contains(th, r.DueAt, now) {
				continue
			}

			key := reminder.Key{ID: r.ID, Threshold: th}
			if s.tracker.HasFired(key) {
				continue
			}

			s.dispatcher.Dispatch(alert.Event{
				Reminder:  r,
				Threshold: th,
				At:        now,
			})
			if s.acks != nil {
				s.acks.Submit(r.ID)
			}
			s.tracker.MarkFired(key)
			s.cache.MarkNotified(r.ID)
			metrics.RecordAlertDispatched(th.String())

			s.logger.Info("Alert dispatched",
				zap.String("reminder_id", r.ID),
				zap.String("title", r.Title),
				zap.String("threshold", th.String()),
				zap.Time("due_at", r.DueAt),
			)
			dispatched++
		}
	}

	return dispatched
}
