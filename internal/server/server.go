package server

import (
	"ai-notetaking-pipeline/internal/bootstrap"
	"ai-notetaking-pipeline/internal/config"
	"ai-notetaking-pipeline/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the ops surface of the worker: source intake, job inspection,
// signed object downloads, health and metrics.
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             10 * 1024 * 1024, // 10MB
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.CorsAllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(container.Logger))

	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", nil))
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Addr() string {
	return ":" + s.cfg.App.Port
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	guard := serverutils.OperatorAuth(cfg.App.OpsJWTSecret)

	api := app.Group("/api")
	c.JobController.RegisterRoutes(api, guard)
	c.SourceController.RegisterRoutes(api, guard)

	// Signed URLs point here, outside /api.
	c.ObjectController.RegisterRoutes(app)
}
