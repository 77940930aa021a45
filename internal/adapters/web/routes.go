package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp builds the Fiber app with the standard middleware chain and routes.
func NewApp(handlers *Handlers, rateLimiter *RateLimiter, gatherer prometheus.Gatherer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Tweet Cleaner",
		DisableStartupMessage: true,
	})

	app.Use(recover.New(RecoverConfig()))
	app.Use(requestid.New(RequestIDConfig()))
	app.Use(RequestIDToContextMiddleware())
	app.Use(RequestLoggerMiddleware())

	SetupRoutes(app, handlers, rateLimiter, gatherer)
	return app
}

// SetupRoutes configures the application routes.
func SetupRoutes(app *fiber.App, handlers *Handlers, rateLimiter *RateLimiter, gatherer prometheus.Gatherer) {
	api := app.Group("/api")

	api.Get("/status", handlers.Status)

	api.Post("/credentials", handlers.SetCredentials)
	api.Post("/credentials/capture", handlers.CaptureCredentials)

	api.Get("/options", handlers.GetOptions)
	api.Put("/options", handlers.PutOptions)

	// Rate limited per IP
	api.Post("/runs", rateLimiter.Middleware(), handlers.StartRun)
	api.Get("/runs/current", handlers.CurrentRun)
	api.Delete("/runs/current", handlers.CancelRun)

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
