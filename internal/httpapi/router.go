package httpapi

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// NewApp assembles the fiber application: middleware, API routes, health,
// and metrics.
func NewApp(h *Handler, logger *slog.Logger, reg *prometheus.Registry) *fiber.App {
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:      "youtube-influencer-finder",
		ErrorHandler: errorHandler(logger),
	})

	app.Use(recoverer.New())
	app.Use(requestLogger(logger))

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if reg != nil {
		metrics := fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		app.Get("/metrics", func(c fiber.Ctx) error {
			metrics(c.RequestCtx())
			return nil
		})
	}

	api := app.Group("/api")
	api.Post("/search", h.Search)
	api.Get("/credentials", h.Credentials)
	api.Post("/credentials/reset", h.ResetCredentials)
	api.Post("/cache/invalidate", h.FlushCache)

	return app
}
