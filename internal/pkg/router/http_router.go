package router

import (
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
)

// HttpRouter serves the non-API routes: health, metrics and API docs.
type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// /metrics is only mounted when credentials are configured
	if user, pass := env.GetEnv("METRICS_USER", ""), env.GetEnv("METRICS_PASSWORD", ""); user != "" && pass != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{user: pass},
		}), monitor.New(monitor.Config{Title: "PlayVerse Metrics"}))
	}

	// SWAGGER / OPENAPI
	if env.GetEnv("API_DOCS_ENABLED", "true") == "true" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: env.GetEnv("API_DOCS_FILE", "./public/docs/v1/openapi.yml"),
			Path:     "v1",
		}))
	}
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
