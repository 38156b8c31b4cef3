package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/AAs6395/medremind/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ReminderCRUD(t *testing.T) {
	s := setupTestStore(t)
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	r := &Reminder{Title: "Take aspirin", DueAt: due, Notes: "with food"}
	require.NoError(t, s.CreateReminder(r))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "manual", r.Origin)

	got, err := s.GetReminder(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Take aspirin", got.Title)
	assert.True(t, got.DueAt.Equal(due))
	assert.False(t, got.Notified)

	list, err := s.ListReminders()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteReminder(r.ID))
	_, err = s.GetReminder(r.ID)
	assert.Equal(t, apperrors.ErrRecordNotFound.Code, apperrors.GetCode(err))
}

func TestStore_ListRemindersOrderedByDue(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateReminder(&Reminder{Title: "later", DueAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateReminder(&Reminder{Title: "sooner", DueAt: base}))

	list, err := s.ListReminders()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sooner", list[0].Title)
	assert.Equal(t, "later", list[1].Title)
}

func TestStore_ManualRemindersGetDistinctOriginKeys(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	r1 := &Reminder{Title: "first", DueAt: base}
	r2 := &Reminder{Title: "second", DueAt: base.Add(time.Hour)}
	require.NoError(t, s.CreateReminder(r1))
	require.NoError(t, s.CreateReminder(r2), "a second keyless reminder must not trip the unique index")

	assert.NotEmpty(t, r1.OriginKey)
	assert.NotEqual(t, r1.OriginKey, r2.OriginKey)
}

func TestStore_MarkReminderNotified(t *testing.T) {
	s := setupTestStore(t)

	r := &Reminder{Title: "Statin", DueAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateReminder(r))

	require.NoError(t, s.MarkReminderNotified(r.ID))
	got, err := s.GetReminder(r.ID)
	require.NoError(t, err)
	assert.True(t, got.Notified)

	// Marking again keeps the flag set.
	require.NoError(t, s.MarkReminderNotified(r.ID))
	got, err = s.GetReminder(r.ID)
	require.NoError(t, err)
	assert.True(t, got.Notified)

	err = s.MarkReminderNotified("rem_missing")
	assert.Equal(t, apperrors.ErrRecordNotFound.Code, apperrors.GetCode(err))
}

func TestStore_CreateReminderIfAbsent(t *testing.T) {
	s := setupTestStore(t)
	due := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	r1 := &Reminder{
		Title:     "Metformin 500mg",
		DueAt:     due,
		Origin:    "medication",
		OriginKey: "med_1@" + due.Format(time.RFC3339),
	}
	created, err := s.CreateReminderIfAbsent(r1)
	require.NoError(t, err)
	assert.True(t, created)

	// Same slot again is a no-op, not a duplicate.
	r2 := &Reminder{
		Title:     "Metformin 500mg",
		DueAt:     due,
		Origin:    "medication",
		OriginKey: "med_1@" + due.Format(time.RFC3339),
	}
	created, err = s.CreateReminderIfAbsent(r2)
	require.NoError(t, err)
	assert.False(t, created)

	list, err := s.ListReminders()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.CreateReminderIfAbsent(&Reminder{Title: "no key", DueAt: due})
	assert.Error(t, err)
}

func TestStore_MedicationCRUD(t *testing.T) {
	s := setupTestStore(t)

	m := &Medication{
		Name:         "Metformin",
		Dosage:       "500mg",
		Times:        []string{"08:00", "20:00"},
		RemindBefore: 10,
		Active:       true,
	}
	require.NoError(t, s.CreateMedication(m))
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "daily", m.Frequency)

	got, err := s.GetMedication(m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "20:00"}, got.Times)

	got.Active = false
	require.NoError(t, s.UpdateMedication(got))

	active, err := s.ListActiveMedications()
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := s.ListMedications()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteMedication(m.ID))
	err = s.DeleteMedication(m.ID)
	assert.Equal(t, apperrors.ErrRecordNotFound.Code, apperrors.GetCode(err))
}

func TestStore_VitalSigns(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateVitalSign(&VitalSign{Kind: "heart_rate", Value: 62, Unit: "bpm", RecordedAt: base}))
	require.NoError(t, s.CreateVitalSign(&VitalSign{Kind: "heart_rate", Value: 68, Unit: "bpm", RecordedAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateVitalSign(&VitalSign{Kind: "weight", Value: 71.5, Unit: "kg", RecordedAt: base}))

	hr, err := s.ListVitalSigns("heart_rate", 0)
	require.NoError(t, err)
	require.Len(t, hr, 2)
	assert.Equal(t, float64(68), hr[0].Value, "newest first")

	limited, err := s.ListVitalSigns("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_AppointmentCRUD(t *testing.T) {
	s := setupTestStore(t)

	a := &Appointment{
		Title:    "Cardiology checkup",
		Provider: "Dr. Lim",
		DateTime: time.Date(2025, 7, 1, 14, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateAppointment(a))
	assert.Equal(t, "scheduled", a.Status)

	got, err := s.GetAppointment(a.ID)
	require.NoError(t, err)
	got.Status = "completed"
	require.NoError(t, s.UpdateAppointment(got))

	list, err := s.ListAppointments()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "completed", list[0].Status)

	require.NoError(t, s.DeleteAppointment(a.ID))
	_, err = s.GetAppointment(a.ID)
	assert.Equal(t, apperrors.ErrRecordNotFound.Code, apperrors.GetCode(err))
}
