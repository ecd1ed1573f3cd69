package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PlayVerse/app/controllers"
	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalog"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/library"
)

// Router registers a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the services the HTTP layer is built from.
type Dependencies struct {
	Repos         *repository.Repositories
	Billing       *billing.Service
	Catalog       *catalog.Service
	Library       *library.Service
	Jobs          controllers.JobQueue
	RecordView    controllers.ViewRecorder
	WebhookSecret string
	// LimiterStorage backs the API rate limiter. Nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Operational routes first so /metrics and /health bypass the API limiter.
	setup(app, NewHttpRouter(), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
