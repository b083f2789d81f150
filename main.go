package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/clearmarkhq/clearmark/app/repository"
	"github.com/clearmarkhq/clearmark/internal/pkg/cache"
	"github.com/clearmarkhq/clearmark/internal/pkg/database"
	"github.com/clearmarkhq/clearmark/internal/pkg/env"
	"github.com/clearmarkhq/clearmark/internal/pkg/lava"
	"github.com/clearmarkhq/clearmark/internal/pkg/middleware"
	"github.com/clearmarkhq/clearmark/internal/pkg/payment"
	"github.com/clearmarkhq/clearmark/internal/pkg/router"
	"github.com/clearmarkhq/clearmark/internal/pkg/storage"
	"github.com/clearmarkhq/clearmark/internal/pkg/videojob"
)

func main() {
	app, poller := NewApplication()
	poller.Start()

	// graceful shutdown: stop taking requests, then drain the poller
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("shutting down")
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	poller.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *videojob.Poller) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	storageCfg, err := storage.LoadConfig()
	if err != nil {
		log.Fatalf("storage config: %v", err)
	}
	store, err := storage.NewClient(storageCfg)
	if err != nil {
		log.Fatalf("storage client: %v", err)
	}

	engine := payment.NewEngineFromDB(payment.Config{
		Provider:      "lava",
		WebhookSecret: env.GetEnv("LAVA_WEBHOOK_SECRET", ""),
	}, database.GetDB())

	jobs := videojob.NewClientFromEnv()
	poller := videojob.NewPoller(jobs, repository.GetGlobalFactory().GetUploadRepository())

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 838860800, // 800 MiB, raw phone videos get large
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.NewApiRouter(
		middleware.NewTokenManagerFromEnv(),
		engine,
		lava.NewClientFromEnv(),
		store,
		jobs,
	))

	return app, poller
}
