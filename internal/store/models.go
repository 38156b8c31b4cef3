package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reminder is a timed alert obligation. The agent consumes these through
// the REST contract; Notified is monotonic and only deletion resets it.
type Reminder struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Title     string    `json:"title"`
	DueAt     time.Time `gorm:"index" json:"date_time"`
	Notes     string    `json:"notes,omitempty"`
	Notified  bool      `json:"notified"`
	Origin    string    `json:"origin,omitempty"`     // manual or medication
	OriginKey string    `gorm:"uniqueIndex" json:"-"` // dedupes materialized rows
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Medication is a recurring prescription whose Times slots the
// materializer expands into concrete reminders.
type Medication struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency"` // daily, as_needed
	Times        []string  `gorm:"serializer:json" json:"times"`
	RemindBefore int       `json:"remind_before,omitempty"` // minutes
	Active       bool      `json:"active"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VitalSign is one recorded health measurement.
type VitalSign struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Kind       string    `gorm:"index" json:"kind"` // blood_pressure, heart_rate, weight...
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	RecordedAt time.Time `gorm:"index" json:"recorded_at"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Appointment is a scheduled medical visit.
type Appointment struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider,omitempty"`
	Location  string    `json:"location,omitempty"`
	DateTime  time.Time `gorm:"index" json:"date_time"`
	Status    string    `json:"status"` // scheduled, completed, cancelled
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateID("rem")
	}
	if r.Origin == "" {
		r.Origin = "manual"
	}
	// Manual rows need a distinct origin key too, or the unique index
	// collides on the empty string after the first one.
	if r.OriginKey == "" {
		r.OriginKey = r.ID
	}
	return nil
}

func (m *Medication) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateID("med")
	}
	if m.Frequency == "" {
		m.Frequency = "daily"
	}
	return nil
}

func (v *VitalSign) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateID("vit")
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = time.Now()
	}
	return nil
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateID("apt")
	}
	if a.Status == "" {
		a.Status = "scheduled"
	}
	return nil
}

func generateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
