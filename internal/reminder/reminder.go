package reminder

import (
	"fmt"
	"time"
)

// Reminder is the read-only copy of a backend reminder record. The backend
// owns the record; the agent only caches it between refreshes.
type Reminder struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	DueAt    time.Time `json:"date_time"`
	Notes    string    `json:"notes,omitempty"`
	Notified bool      `json:"notified"`
}

// Threshold names an alert trigger point relative to a reminder's due time.
type Threshold int

const (
	// PreAlert fires shortly before the due time.
	PreAlert Threshold = iota
	// DueAlert fires once the due time has passed.
	DueAlert
)

// Thresholds lists all thresholds in evaluation order. PreAlert is always
// evaluated before DueAlert so the less urgent window is never starved.
var Thresholds = []Threshold{PreAlert, DueAlert}

func (t Threshold) String() string {
	switch t {
	case PreAlert:
		return "pre_alert"
	case DueAlert:
		return "due_alert"
	default:
		return fmt.Sprintf("threshold(%d)", int(t))
	}
}

// Key identifies one (reminder, threshold) alert obligation.
type Key struct {
	ID        string
	Threshold Threshold
}

func (k Key) String() string {
	return k.ID + "/" + k.Threshold.String()
}

// Windows holds the alert window tunables. Lead is how long before the due
// time the PreAlert window opens; Grace is how long after the due time the
// DueAlert window stays open.
type Windows struct {
	Lead  time.Duration
	Grace time.Duration
}

// DefaultWindows matches the reference alerting behavior.
func DefaultWindows() Windows {
	return Windows{Lead: 5 * time.Minute, Grace: time.Minute}
}

// Bounds returns the half-open window (start, end] for a threshold relative
// to dueAt. PreAlert spans (dueAt-lead, dueAt], DueAlert (dueAt, dueAt+grace].
func (w Windows) Bounds(t Threshold, dueAt time.Time) (start, end time.Time) {
	switch t {
	case PreAlert:
		return dueAt.Add(-w.Lead), dueAt
	case DueAlert:
		return dueAt, dueAt.Add(w.Grace)
	default:
		return dueAt, dueAt
	}
}

// Contains reports whether now falls inside the threshold window. The start
// bound is exclusive and the end bound inclusive, so a tick landing exactly
// on dueAt belongs to PreAlert, not DueAlert.
func (w Windows) Contains(t Threshold, dueAt, now time.Time) bool {
	start, end := w.Bounds(t, dueAt)
	return now.After(start) && !now.After(end)
}

// State is the derived lifecycle position of a reminder.
type State int

const (
	StatePending State = iota
	StatePreAlerted
	StateFired
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StatePreAlerted:
		return "pre_alerted"
	case StateFired:
		return "fired"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateOf derives the lifecycle state from the fired thresholds and the
// clock. Expired wins once the due window has fully passed; before that the
// most urgent fired threshold decides.
func StateOf(r Reminder, w Windows, fired func(Key) bool, now time.Time) State {
	if now.After(r.DueAt.Add(w.Grace)) {
		return StateExpired
	}
	if fired(Key{ID: r.ID, Threshold: DueAlert}) {
		return StateFired
	}
	if fired(Key{ID: r.ID, Threshold: PreAlert}) {
		return StatePreAlerted
	}
	return StatePending
}

// MinutesUntil returns the whole minutes between now and the due time,
// rounded up, never negative. Used for "due in N minutes" alert text.
func MinutesUntil(dueAt, now time.Time) int {
	d := dueAt.Sub(now)
	if d <= 0 {
		return 0
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	return mins
}
