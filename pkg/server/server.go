// Package server exposes a dataset store over HTTP: it receives capture
// uploads, renders previews, exports zips, and hosts the websocket feeds for
// dashboards and capture devices.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-yolocapture/pkg/dataset"
	"github.com/teslashibe/go-yolocapture/pkg/hub"
	"github.com/teslashibe/go-yolocapture/pkg/relay"
	"github.com/teslashibe/go-yolocapture/pkg/upload"
)

// Server is the dataset collection server
type Server struct {
	cfg    Config
	app    *fiber.App
	store  *dataset.Store
	logger *slog.Logger

	uploads *hub.Hub
	relay   *relay.Relay

	stored   atomic.Uint64
	rejected atomic.Uint64
}

// New creates a server over store.
func New(store *dataset.Store, opts ...Option) (*Server, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("server: store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Relay == nil {
		cfg.Relay = relay.New(logger)
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		logger:  logger.With("component", "server"),
		uploads: hub.New("uploads", logger),
		relay:   cfg.Relay,
	}

	app := fiber.New(fiber.Config{
		AppName:               "yolocapture dataset server",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	corsCfg := cors.Config{}
	if cfg.CORSOrigins != "" {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	app.Use(recover.New())
	app.Use(cors.New(corsCfg))
	if cfg.RequestLog {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	app.Post(upload.Path, s.handleUpload)
	app.Get("/dataset/:dataset/preview", s.handlePreview)
	app.Get("/dataset/:dataset/download", s.handleDownload)

	api := app.Group("/api")
	api.Get("/datasets", s.handleListDatasets)
	s.relay.RegisterAPIRoutes(api)

	s.relay.RegisterRoutes(app)

	app.Use("/ws/uploads", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/uploads", websocket.New(s.handleUploadsWS))

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the upload notification hub.
func (s *Server) Hub() *hub.Hub {
	return s.uploads
}

// Relay returns the device relay.
func (s *Server) Relay() *relay.Relay {
	return s.relay
}

// Start runs the upload hub and serves until the listener fails or
// Shutdown is called. The hub stops when ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	go s.uploads.Run(ctx)

	s.logger.Info("dataset server listening", "addr", s.cfg.Addr, "root", s.store.Root())
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown gracefully stops the server, giving in-flight requests until
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
