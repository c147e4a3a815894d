// Package web serves the vision service HTTP and WebSocket API.
package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/williamjhyland/gemini-vision-service/pkg/camera"
	"github.com/williamjhyland/gemini-vision-service/pkg/hub"
	"github.com/williamjhyland/gemini-vision-service/pkg/ingest"
	"github.com/williamjhyland/gemini-vision-service/pkg/vision"
)

// Config holds the server settings.
type Config struct {
	// Listen is the bind address, e.g. ":8090".
	Listen string

	// AllowOrigins restricts CORS; empty allows any origin.
	AllowOrigins string

	// Model and DefaultCamera are reported on the status endpoint.
	Model         string
	DefaultCamera string
}

// Server is the HTTP and WebSocket front of the vision service.
type Server struct {
	app     *fiber.App
	config  Config
	svc     vision.Service
	cameras *camera.Registry
	results *hub.Hub
	agents  *ingest.Hub
	logger  *slog.Logger
	started time.Time
}

// New wires the routes and returns the server. results receives a
// classification event after every successful camera classification;
// agents may be nil when frame ingest is disabled.
func New(cfg Config, svc vision.Service, cameras *camera.Registry, results *hub.Hub, agents *ingest.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		svc:     svc,
		cameras: cameras,
		results: results,
		agents:  agents,
		logger:  logger,
		started: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Gemini Vision Service",
		DisableStartupMessage: true,
		BodyLimit:             32 << 20,
	})

	if cfg.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowOrigins}))
	} else {
		app.Use(cors.New())
	}
	app.Use(s.observeRequests)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/properties", s.handleProperties)
	api.Get("/cameras", s.handleCameras)
	api.Post("/classifications", s.handleClassifications)
	api.Post("/classifications/:camera", s.handleClassificationsFromCamera)
	api.Post("/describe", s.handleDescribe)
	api.Post("/describe/:camera", s.handleDescribeFromCamera)
	api.Post("/captureall/:camera", s.handleCaptureAll)
	api.Post("/detections", s.handleDetections)
	api.Post("/detections/:camera", s.handleDetectionsFromCamera)

	if agents != nil {
		agents.RegisterRoutes(app)
		agents.RegisterAPIRoutes(api)
	}

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket upgrade middleware
	app.Use("/ws/results", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Result stream
	app.Get("/ws/results", websocket.New(func(c *websocket.Conn) {
		s.results.ServeConn(c)
	}))

	s.app = app
	return s
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("http server listening", "addr", s.config.Listen)
	return s.app.Listen(s.config.Listen)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ShutdownWithTimeout gracefully stops the server, bounded by d.
func (s *Server) ShutdownWithTimeout(d time.Duration) error {
	return s.app.ShutdownWithTimeout(d)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
