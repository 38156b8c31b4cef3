// Package server implements the tracking backend: the REST API the
// alert agent consumes, the websocket change feed, and the cron job
// that materializes reminders from medication schedules.
package server

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/config"
	"github.com/AAs6395/medremind/internal/store"
)

// Server handles the HTTP API and websocket change feed.
type Server struct {
	app          *fiber.App
	config       *config.Config
	store        *store.Store
	hub          *Hub
	materializer *Materializer
	logger       *zap.Logger
}

// New creates the API server.
func New(cfg *config.Config, st *store.Store, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:    app,
		config: cfg,
		store:  st,
		hub:    NewHub(logger),
		logger: logger,
	}
	s.materializer = NewMaterializer(cfg, st, s.hub, logger)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Server.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)

	s.app.Post("/auth/login", s.handleLogin)

	protected := s.app.Use(s.authMiddleware())

	protected.Get("/reminders", s.handleListReminders)
	protected.Post("/reminders", s.handleCreateReminder)
	protected.Put("/reminders/:id/notify", s.handleNotifyReminder)
	protected.Delete("/reminders/:id", s.handleDeleteReminder)

	protected.Get("/medications", s.handleListMedications)
	protected.Post("/medications", s.handleCreateMedication)
	protected.Put("/medications/:id", s.handleUpdateMedication)
	protected.Delete("/medications/:id", s.handleDeleteMedication)

	protected.Get("/vitals", s.handleListVitals)
	protected.Post("/vitals", s.handleCreateVital)
	protected.Delete("/vitals/:id", s.handleDeleteVital)

	protected.Get("/appointments", s.handleListAppointments)
	protected.Post("/appointments", s.handleCreateAppointment)
	protected.Put("/appointments/:id", s.handleUpdateAppointment)
	protected.Delete("/appointments/:id", s.handleDeleteAppointment)

	s.app.Get("/ws", s.handleChangeFeed())
}

// Start begins serving and launches the materializer. Blocks until the
// listener fails or the server is shut down.
func (s *Server) Start() error {
	if err := s.materializer.Start(); err != nil {
		return err
	}
	return s.app.Listen(s.config.ListenAddr())
}

// Shutdown stops the materializer and drains the HTTP server.
func (s *Server) Shutdown() error {
	s.materializer.Stop()
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}
