package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukex/renflow/pkg/dispatcher"
	"github.com/dukex/renflow/pkg/registry"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// Server serves the admin API for one dispatcher.
type Server struct {
	logger     *slog.Logger
	dispatcher *dispatcher.Dispatcher
	registry   *registry.Registry
	webhooks   fiber.Handler
	metrics    http.Handler
	app        *fiber.App
}

type ServerOption func(*Server)

// WithWebhooks mounts handler under /webhooks/*.
func WithWebhooks(handler fiber.Handler) ServerOption {
	return func(s *Server) { s.webhooks = handler }
}

// WithMetrics serves handler on GET /metrics.
func WithMetrics(handler http.Handler) ServerOption {
	return func(s *Server) { s.metrics = handler }
}

func NewServer(logger *slog.Logger, d *dispatcher.Dispatcher, registry *registry.Registry, opts ...ServerOption) *Server {
	s := &Server{
		logger:     logger.With("module", "web"),
		dispatcher: d,
		registry:   registry,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	handlers := NewAPIHandlers(s.dispatcher, s.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("renflow")
	})

	app.Get("/health", handlers.HealthCheck)
	app.Get("/nodes", handlers.GetNodes)
	app.Get("/adapters", handlers.GetAdapters)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/validate", handlers.ValidateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/run", handlers.RunWorkflow)

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics))
	}

	if s.webhooks != nil {
		app.All("/webhooks/*", s.webhooks)
	}

	s.app = app

	return app
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Admin API listening", "addr", addr)

	return s.App().Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}

	return s.app.ShutdownWithContext(ctx)
}
