package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PlayVerse/app/controllers"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	deps := h.deps
	users := deps.Repos.User

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:          env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration:   time.Minute,
		KeyGenerator: controllers.ClientIP,
		Storage:      deps.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Payment provider callbacks authenticate with a signature, not an API key
	billingController := controllers.NewBillingController(deps.Billing, deps.WebhookSecret)
	v1.Post("/billing/webhook", billingController.HandlePaymentWebhook)

	// Catalog browsing works anonymously; a key only unlocks the locked flag
	gameController := controllers.NewGameController(deps.Catalog, deps.RecordView)
	games := v1.Group("/games", middleware.OptionalAPIKeyMiddleware(users))
	games.Get("/", gameController.HandleListGames)
	games.Get("/:id", gameController.HandleGetGame)

	h.registerMeRoutes(v1.Group("/me", middleware.APIKeyAuthMiddleware(users), middleware.RequireAuth))
	h.registerAdminRoutes(v1.Group("/admin", middleware.APIKeyAuthMiddleware(users), middleware.RequireAdmin))
}

func (h ApiRouter) registerMeRoutes(me fiber.Router) {
	deps := h.deps

	userController := controllers.NewUserController(deps.Repos.User, deps.Repos.Notification)
	me.Get("/", userController.HandleGetMe)
	me.Get("/notifications", userController.HandleListNotifications)
	me.Post("/notifications/:id/read", userController.HandleMarkNotificationRead)

	planController := controllers.NewPlanController(deps.Billing)
	me.Post("/plan/upgrade", planController.HandleUpgrade)
	me.Post("/plan/cancel", planController.HandleCancel)
	me.Put("/plan/auto-renew", planController.HandleSetAutoRenew)

	libraryController := controllers.NewLibraryController(deps.Library)
	me.Get("/favorites", libraryController.HandleListFavorites)
	me.Post("/favorites/:gameId", libraryController.HandleAddFavorite)
	me.Post("/favorites/:gameId/toggle", libraryController.HandleToggleFavorite)
	me.Delete("/favorites/:gameId", libraryController.HandleRemoveFavorite)
	me.Get("/cart", libraryController.HandleGetCart)
	me.Post("/cart", libraryController.HandleAddToCart)
	me.Delete("/cart", libraryController.HandleClearCart)
	me.Delete("/cart/:gameId", libraryController.HandleRemoveFromCart)
}

func (h ApiRouter) registerAdminRoutes(admin fiber.Router) {
	deps := h.deps
	adminController := controllers.NewAdminController(deps.Billing, deps.Catalog, deps.Repos.User, deps.Jobs)

	admin.Post("/games", adminController.HandleCreateGame)
	admin.Patch("/games/:id", adminController.HandleUpdateGame)
	admin.Delete("/games/:id", adminController.HandleDeleteGame)

	admin.Get("/users", adminController.HandleListUsers)
	admin.Put("/users/:id/plan", adminController.HandleAssignPlan)
	admin.Get("/users/:id/events", adminController.HandleListUpgradeEvents)
	admin.Post("/users/:id/api-key", adminController.HandleIssueAPIKey)

	admin.Post("/jobs/sweep", adminController.HandleRunSweep)
	admin.Post("/jobs/rating-sync", adminController.HandleEnqueueRatingSync)
	admin.Get("/jobs/stats", adminController.HandleJobStats)
	admin.Get("/jobs/:jobId", adminController.HandleGetJob)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
