package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"iams/internal/config"
	"iams/internal/database"
	"iams/internal/database/migration"
	handlers "iams/internal/http/handler"
	"iams/internal/http/middleware"
	"iams/internal/otel"
	"iams/internal/repository/postgres"
	"iams/internal/service"
	"iams/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing(ctx)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		logger.Fatal("failed to bootstrap schema", zap.Error(err))
	}

	// External bytes live on the local filesystem by default; MinIO when
	// configured.
	var ext storage.ExternalStore
	switch cfg.Storage.Backend {
	case "minio":
		ext, err = storage.NewMinIO(cfg.MinIO)
	default:
		ext, err = storage.NewLocalStore(cfg.Storage.BasePath)
	}
	if err != nil {
		logger.Fatal("failed to initialize external store",
			zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}

	content, err := service.NewContentStore(cfg.Storage, ext, logger)
	if err != nil {
		logger.Fatal("invalid storage configuration", zap.Error(err))
	}

	dirRepo := postgres.NewDirectoryPostgres(db)
	fileRepo := postgres.NewFilePostgres(db)

	dirSvc := service.NewDirectoryService(dirRepo, logger)
	fileSvc := service.NewFileService(fileRepo, dirSvc, content, logger)
	uploads := service.NewUploadManager(dirSvc, fileSvc, content,
		time.Duration(cfg.Storage.OpTimeoutSec)*time.Second, logger)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    64 * 1024 * 1024,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	prom, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}
	app.Use(prom.Handler())

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	handlers.RegisterRoutes(app, db, dirSvc, fileSvc, uploads)

	addr := ":" + cfg.Port
	logger.Info("starting server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
