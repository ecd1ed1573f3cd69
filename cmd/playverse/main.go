package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PlayVerse/app/repository"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/cache"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalog"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/catalogsync"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/database"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/igdb"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/library"
	metrics "github.com/ManuelReschke/PlayVerse/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/router"
)

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		jobqueue.GetManager().Stop()
		if err := metrics.FlushAll(); err != nil {
			log.Printf("Final counter flush failed: %v", err)
		}
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	billingSvc := billing.NewServiceFromDB(db)
	catalogSvc := catalog.NewService(repos.Game)
	librarySvc := library.NewService(repos.Library, repos.Game)

	// BACKGROUND JOBS
	handlers := jobqueue.Handlers{Sweeper: billingSvc}
	igdbClient := igdb.NewClientFromEnv(cache.NewStore(cache.GetClient(), "playverse:"))
	if igdbClient.Configured() {
		handlers.Ratings = catalogsync.NewSyncer(igdbClient, catalogSvc, catalogsync.ConfigFromEnv())
	} else {
		log.Println("IGDB credentials missing, rating sync jobs will fail")
	}
	manager := jobqueue.GetManager()
	manager.Configure(handlers)
	manager.Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "PlayVerse",
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Repos:          repos,
		Billing:        billingSvc,
		Catalog:        catalogSvc,
		Library:        librarySvc,
		Jobs:           manager.GetQueue(),
		RecordView:     metrics.AddGameView,
		WebhookSecret:  env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""),
		LimiterStorage: cache.NewFiberStorage(cache.LimiterDatabase),
	})

	return app
}
