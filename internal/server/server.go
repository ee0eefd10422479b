package server

import (
	"log"

	"redline-be/internal/bootstrap"
	"redline-be/internal/config"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/service"
	"redline-be/internal/session"
	"redline-be/pkg/agent"
	"redline-be/pkg/doctree"
	"redline-be/pkg/thread"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// errorStatuses maps domain errors to HTTP statuses for every route.
var errorStatuses = []serverutils.ErrorStatus{
	{Err: service.ErrDocumentNotFound, Status: fiber.StatusNotFound},
	{Err: thread.ErrThreadNotFound, Status: fiber.StatusNotFound},
	{Err: service.ErrInvalidContent, Status: fiber.StatusBadRequest},
	{Err: service.ErrInvalidUpdate, Status: fiber.StatusBadRequest},
	{Err: service.ErrInvalidDocumentId, Status: fiber.StatusBadRequest},
	{Err: session.ErrEmptySelection, Status: fiber.StatusBadRequest},
	{Err: doctree.ErrStaleKey, Status: fiber.StatusBadRequest},
	{Err: doctree.ErrNotText, Status: fiber.StatusBadRequest},
	{Err: doctree.ErrOffsetOutOfRange, Status: fiber.StatusBadRequest},
	{Err: agent.ErrMalformedProposal, Status: fiber.StatusUnprocessableEntity},
	{Err: service.ErrDownloadUnavailable, Status: fiber.StatusServiceUnavailable},
}

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(errorStatuses...))

	// Routes
	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	c.DocumentController.RegisterRoutes(api)
	c.ThreadController.RegisterRoutes(api)
	c.LogController.RegisterRoutes(api)

	// WebSocket
	c.SyncHandler.RegisterRoutes(app)
	c.AgentHandler.RegisterRoutes(app)
}
