package alert

import (
	"fmt"
	"time"

	"github.com/AAs6395/medremind/internal/reminder"
)

// Event is one alert obligation produced by the scheduler: a reminder
// crossing a threshold at a given instant.
type Event struct {
	Reminder  reminder.Reminder
	Threshold reminder.Threshold
	At        time.Time
}

// Message is the human-readable alert body shown next to the reminder title.
func (e Event) Message() string {
	if e.Threshold == reminder.DueAlert {
		return "Due now"
	}

	mins := reminder.MinutesUntil(e.Reminder.DueAt, e.At)
	if mins <= 1 {
		return "Due in under a minute"
	}
	return fmt.Sprintf("Due in about %d minutes", mins)
}

// Text is the single-line rendering used by chat channels.
func (e Event) Text() string {
	return fmt.Sprintf("⏰ %s: %s", e.Reminder.Title, e.Message())
}
