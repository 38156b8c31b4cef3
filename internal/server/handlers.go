package server

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apperrors "github.com/AAs6395/medremind/internal/errors"
	"github.com/AAs6395/medremind/internal/metrics"
	"github.com/AAs6395/medremind/internal/store"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return adaptor.HTTPHandler(metrics.Handler())(c)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	if !s.config.Server.AuthEnabled {
		return c.Status(404).JSON(fiber.Map{"error": "auth is not enabled"})
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.config.Server.Password)) != 1 {
		return c.Status(401).JSON(fiber.Map{"error": "invalid password"})
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "default",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(s.config.Server.TokenTTL).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.Server.JWTSecret))
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.JSON(fiber.Map{"token": tokenString})
}

// ==================== Reminders ====================

func (s *Server) handleListReminders(c *fiber.Ctx) error {
	reminders, err := s.store.ListReminders()
	if err != nil {
		s.logger.Error("Failed to list reminders", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to list reminders"})
	}
	return c.JSON(reminders)
}

func (s *Server) handleCreateReminder(c *fiber.Ctx) error {
	var req struct {
		Title string    `json:"title"`
		DueAt time.Time `json:"date_time"`
		Notes string    `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Title == "" {
		return c.Status(400).JSON(fiber.Map{"error": "title is required"})
	}
	if req.DueAt.IsZero() {
		return c.Status(400).JSON(fiber.Map{"error": "date_time is required"})
	}

	r := &store.Reminder{Title: req.Title, DueAt: req.DueAt.UTC(), Notes: req.Notes}
	if err := s.store.CreateReminder(r); err != nil {
		s.logger.Error("Failed to create reminder", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to create reminder"})
	}

	s.hub.BroadcastRemindersChanged()
	return c.Status(201).JSON(r)
}

func (s *Server) handleNotifyReminder(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.MarkReminderNotified(id); err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "reminder not found"})
		}
		s.logger.Error("Failed to mark reminder notified", zap.String("id", id), zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to update reminder"})
	}

	s.hub.BroadcastRemindersChanged()
	return c.JSON(fiber.Map{"id": id, "notified": true})
}

func (s *Server) handleDeleteReminder(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteReminder(id); err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "reminder not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete reminder"})
	}

	s.hub.BroadcastRemindersChanged()
	return c.SendStatus(204)
}

// ==================== Medications ====================

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	meds, err := s.store.ListMedications()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list medications"})
	}
	return c.JSON(meds)
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var m store.Medication
	if err := c.BodyParser(&m); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if m.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}
	m.ID = ""

	if err := s.store.CreateMedication(&m); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to create medication"})
	}
	return c.Status(201).JSON(m)
}

func (s *Server) handleUpdateMedication(c *fiber.Ctx) error {
	id := c.Params("id")
	existing, err := s.store.GetMedication(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "medication not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to load medication"})
	}

	var m store.Medication
	if err := c.BodyParser(&m); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	m.ID = existing.ID
	m.CreatedAt = existing.CreatedAt

	if err := s.store.UpdateMedication(&m); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to update medication"})
	}
	return c.JSON(m)
}

func (s *Server) handleDeleteMedication(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteMedication(id); err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "medication not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete medication"})
	}
	return c.SendStatus(204)
}

// ==================== Vital Signs ====================

func (s *Server) handleListVitals(c *fiber.Ctx) error {
	kind := c.Query("kind")
	limit := c.QueryInt("limit", 100)

	vitals, err := s.store.ListVitalSigns(kind, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list vitals"})
	}
	return c.JSON(vitals)
}

func (s *Server) handleCreateVital(c *fiber.Ctx) error {
	var v store.VitalSign
	if err := c.BodyParser(&v); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if v.Kind == "" {
		return c.Status(400).JSON(fiber.Map{"error": "kind is required"})
	}
	v.ID = ""

	if err := s.store.CreateVitalSign(&v); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to record vital sign"})
	}
	return c.Status(201).JSON(v)
}

func (s *Server) handleDeleteVital(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteVitalSign(id); err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "vital sign not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete vital sign"})
	}
	return c.SendStatus(204)
}

// ==================== Appointments ====================

func (s *Server) handleListAppointments(c *fiber.Ctx) error {
	appts, err := s.store.ListAppointments()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list appointments"})
	}
	return c.JSON(appts)
}

func (s *Server) handleCreateAppointment(c *fiber.Ctx) error {
	var a store.Appointment
	if err := c.BodyParser(&a); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if a.Title == "" {
		return c.Status(400).JSON(fiber.Map{"error": "title is required"})
	}
	if a.DateTime.IsZero() {
		return c.Status(400).JSON(fiber.Map{"error": "date_time is required"})
	}
	a.ID = ""

	if err := s.store.CreateAppointment(&a); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to create appointment"})
	}
	return c.Status(201).JSON(a)
}

func (s *Server) handleUpdateAppointment(c *fiber.Ctx) error {
	id := c.Params("id")
	existing, err := s.store.GetAppointment(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "appointment not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to load appointment"})
	}

	var a store.Appointment
	if err := c.BodyParser(&a); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt

	if err := s.store.UpdateAppointment(&a); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to update appointment"})
	}
	return c.JSON(a)
}

func (s *Server) handleDeleteAppointment(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteAppointment(id); err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "appointment not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete appointment"})
	}
	return c.SendStatus(204)
}
