// Package gateway exposes the flow controller to the conversational
// front-end as a JSON HTTP API, one session per user.
package gateway

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"dochelper/internal/config"
	"dochelper/internal/engine"
	"dochelper/internal/logging"
)

type Server struct {
	app    *fiber.App
	eng    *engine.Engine
	logger *slog.Logger
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg *config.Config, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{eng: eng, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.app = fiber.New(fiber.Config{
		ErrorHandler:          s.errorHandler,
		BodyLimit:             int(cfg.MaxFileSizeBytes) + 1<<20,
		DisableStartupMessage: true,
	})

	throttle := newThrottle(cfg.ThrottleInterval)
	uploadThrottle := newThrottle(cfg.ThrottleUploadInterval)

	check := s.app.Group("/check")
	check.Get("/healthy", s.handleHealthy)

	sessions := s.app.Group("/api/v1/sessions/:user", throttle.Middleware())
	sessions.Post("/", s.handleStartSession)
	sessions.Get("/", s.handleSessionStatus)
	sessions.Delete("/", s.handleCancel)
	sessions.Post("/document", uploadThrottle.Middleware(), s.handleUpload)
	sessions.Get("/document", s.handleDownload)
	sessions.Post("/find", s.handleFind)
	sessions.Post("/preview", s.handlePreview)
	sessions.Post("/replace", s.handleReplace)
	sessions.Post("/analyze", s.handleAnalyze)
	sessions.Get("/fixes", s.handlePendingFixes)
	sessions.Post("/fixes/apply", s.handleApplyFixes)
	sessions.Get("/usage", s.handleUsage)

	return s
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Info("gateway.listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
