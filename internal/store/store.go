// Package store persists the tracking backend's records in SQLite
// through GORM.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/AAs6395/medremind/internal/errors"
)

// Store provides access to the tracking database.
type Store struct {
	db  *gorm.DB
	sql *sql.DB
}

// New opens (or creates) the SQLite database at path and migrates the
// schema.
func New(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-64000")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable.Code, "failed to open sqlite")
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable.Code, "failed to open sqlite")
	}

	if err := db.AutoMigrate(
		&Reminder{},
		&Medication{},
		&VitalSign{},
		&Appointment{},
	); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable.Code, "failed to migrate schema")
	}

	return &Store{db: db, sql: sqlDB}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

// DB returns the GORM database instance.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ==================== Reminder Methods ====================

// CreateReminder inserts a reminder.
func (s *Store) CreateReminder(r *Reminder) error {
	return s.db.Create(r).Error
}

// GetReminder retrieves a reminder by id.
func (s *Store) GetReminder(id string) (*Reminder, error) {
	var r Reminder
	if err := s.db.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecordNotFound
		}
		return nil, err
	}
	return &r, nil
}

// ListReminders returns all reminders ordered by due time.
func (s *Store) ListReminders() ([]Reminder, error) {
	var out []Reminder
	err := s.db.Order("due_at ASC").Find(&out).Error
	return out, err
}

// MarkReminderNotified flips the notified flag. Monotonic: it never
// unsets an already notified reminder.
func (s *Store) MarkReminderNotified(id string) error {
	res := s.db.Model(&Reminder{}).Where("id = ?", id).Update("notified", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// DeleteReminder removes a reminder.
func (s *Store) DeleteReminder(id string) error {
	res := s.db.Delete(&Reminder{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// CreateReminderIfAbsent inserts a materialized reminder unless one with
// the same origin key already exists. Reports whether a row was created.
func (s *Store) CreateReminderIfAbsent(r *Reminder) (bool, error) {
	if r.OriginKey == "" {
		return false, fmt.Errorf("origin key is required for materialized reminders")
	}

	var count int64
	if err := s.db.Model(&Reminder{}).Where("origin_key = ?", r.OriginKey).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if err := s.db.Create(r).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ==================== Medication Methods ====================

func (s *Store) CreateMedication(m *Medication) error {
	return s.db.Create(m).Error
}

func (s *Store) GetMedication(id string) (*Medication, error) {
	var m Medication
	if err := s.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecordNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMedications() ([]Medication, error) {
	var out []Medication
	err := s.db.Order("name ASC").Find(&out).Error
	return out, err
}

// ListActiveMedications returns medications the materializer should
// expand into reminders.
func (s *Store) ListActiveMedications() ([]Medication, error) {
	var out []Medication
	err := s.db.Where("active = ?", true).Order("name ASC").Find(&out).Error
	return out, err
}

func (s *Store) UpdateMedication(m *Medication) error {
	return s.db.Save(m).Error
}

func (s *Store) DeleteMedication(id string) error {
	res := s.db.Delete(&Medication{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// ==================== Vital Sign Methods ====================

func (s *Store) CreateVitalSign(v *VitalSign) error {
	return s.db.Create(v).Error
}

func (s *Store) ListVitalSigns(kind string, limit int) ([]VitalSign, error) {
	q := s.db.Order("recorded_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []VitalSign
	err := q.Find(&out).Error
	return out, err
}

func (s *Store) DeleteVitalSign(id string) error {
	res := s.db.Delete(&VitalSign{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// ==================== Appointment Methods ====================

func (s *Store) CreateAppointment(a *Appointment) error {
	return s.db.Create(a).Error
}

func (s *Store) GetAppointment(id string) (*Appointment, error) {
	var a Appointment
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecordNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAppointments() ([]Appointment, error) {
	var out []Appointment
	err := s.db.Order("date_time ASC").Find(&out).Error
	return out, err
}

func (s *Store) UpdateAppointment(a *Appointment) error {
	return s.db.Save(a).Error
}

func (s *Store) DeleteAppointment(id string) error {
	res := s.db.Delete(&Appointment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}
