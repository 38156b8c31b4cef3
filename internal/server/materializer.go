package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/config"
	"github.com/AAs6395/medremind/internal/metrics"
	"github.com/AAs6395/medremind/internal/store"
)

// Materializer expands active medication schedules into concrete
// reminder rows for the coming horizon. It runs once at startup and
// then on a cron schedule; the reminder origin key makes repeated runs
// idempotent.
type Materializer struct {
	store    *store.Store
	hub      *Hub
	schedule string
	horizon  time.Duration
	cron     *cron.Cron
	logger   *zap.Logger
	now      func() time.Time
}

func NewMaterializer(cfg *config.Config, st *store.Store, hub *Hub, logger *zap.Logger) *Materializer {
	return &Materializer{
		store:    st,
		hub:      hub,
		schedule: cfg.Server.MaterializeSchedule,
		horizon:  cfg.Server.MaterializeHorizon,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock for tests.
func (m *Materializer) WithClock(now func() time.Time) *Materializer {
	m.now = now
	return m
}

// Start runs one immediate materialization pass and schedules the
// recurring one.
func (m *Materializer) Start() error {
	if _, err := m.Run(); err != nil {
		m.logger.Warn("Initial materialization failed", zap.Error(err))
	}

	m.cron = cron.New()
	if _, err := m.cron.AddFunc(m.schedule, func() {
		if _, err := m.Run(); err != nil {
			m.logger.Warn("Scheduled materialization failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid materialize schedule %q: %w", m.schedule, err)
	}
	m.cron.Start()

	m.logger.Info("Materializer started",
		zap.String("schedule", m.schedule),
		zap.Duration("horizon", m.horizon),
	)
	return nil
}

// Stop halts the cron schedule and waits for a running pass to finish.
func (m *Materializer) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}

// Run materializes reminders for every active medication and returns
// how many rows were created. Broadcasts a change event when anything
// was.
func (m *Materializer) Run() (int, error) {
	meds, err := m.store.ListActiveMedications()
	if err != nil {
		return 0, err
	}

	now := m.now()
	created := 0

	for _, med := range meds {
		for _, slot := range m.slots(med, now) {
			dueAt := slot.Add(-time.Duration(med.RemindBefore) * time.Minute)
			r := &store.Reminder{
				Title:     medicationTitle(med),
				DueAt:     dueAt,
				Notes:     med.Notes,
				Origin:    "medication",
				OriginKey: med.ID + "@" + slot.UTC().Format(time.RFC3339),
			}

			ok, err := m.store.CreateReminderIfAbsent(r)
			if err != nil {
				m.logger.Warn("Failed to materialize reminder",
					zap.String("medication_id", med.ID),
					zap.Time("slot", slot),
					zap.Error(err),
				)
				continue
			}
			if ok {
				created++
			}
		}
	}

	if created > 0 {
		metrics.RecordMaterialized(created)
		m.hub.BroadcastRemindersChanged()
		m.logger.Info("Materialized medication reminders", zap.Int("created", created))
	}
	return created, nil
}

// slots lists the medication's dose times falling inside (now,
// now+horizon]. Times already past are rolled to the next day.
func (m *Materializer) slots(med store.Medication, now time.Time) []time.Time {
	if med.Frequency == "as_needed" {
		return nil
	}

	var out []time.Time
	end := now.Add(m.horizon)

	for _, hhmm := range med.Times {
		hour, minute, err := parseClock(hhmm)
		if err != nil {
			m.logger.Warn("Skipping malformed dose time",
				zap.String("medication_id", med.ID),
				zap.String("time", hhmm),
			)
			continue
		}

		slot := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		for !slot.After(now) {
			slot = slot.AddDate(0, 0, 1)
		}
		for !slot.After(end) {
			out = append(out, slot)
			slot = slot.AddDate(0, 0, 1)
		}
	}
	return out
}

func parseClock(hhmm string) (hour, minute int, err error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed clock time %q", hhmm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed clock time %q", hhmm)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("malformed clock time %q", hhmm)
	}
	return hour, minute, nil
}

func medicationTitle(med store.Medication) string {
	if med.Dosage == "" {
		return "Take " + med.Name
	}
	return fmt.Sprintf("Take %s (%s)", med.Name, med.Dosage)
}
