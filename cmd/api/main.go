package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"docintel/docs"
	"docintel/internal/cache"
	"docintel/internal/config"
	"docintel/internal/database"
	"docintel/internal/database/migration"
	"docintel/internal/extraction"
	handlers "docintel/internal/http/handler"
	"docintel/internal/http/middleware"
	"docintel/internal/llm"
	"docintel/internal/logger"
	"docintel/internal/metrics"
	"docintel/internal/nlquery"
	"docintel/internal/otel"
	"docintel/internal/queue"
	"docintel/internal/repository/postgres"
	"docintel/internal/service"
	"docintel/internal/storage"
)

// @title Document Intelligence API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.Location())

	if err := run(cfg, log); err != nil {
		log.Error("server_exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, "docintel-api", log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize model provider: %w", err)
	}

	pipeline, err := metrics.NewPipeline(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(pipeline),
		service.WithCache(cache.NewDocuments(cfg.Cache.Size, time.Duration(cfg.Cache.TTLSec)*time.Second, pipeline)),
	}
	var broker handlers.Pinger
	if cfg.Pipeline.ExtractionMode == config.ExtractionQueued {
		q := queue.NewClient(cfg.Redis, cfg.LLM.ExtractionAttempts)
		defer q.Close()
		p := queue.NewPinger(cfg.Redis)
		defer p.Close()
		opts = append(opts, service.WithQueue(q))
		broker = p
	}

	// Initialize repositories and services
	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(
		objStore,
		docRepo,
		extraction.NewInvoker(provider, cfg.LLM.ExtractionModel, cfg.LLM.MaxTokens),
		service.Config{
			MaxBytes:           cfg.Pipeline.UploadMaxBytes,
			ExtractionAttempts: cfg.LLM.ExtractionAttempts,
			QueryResultCap:     cfg.Pipeline.QueryResultCap,
		},
		opts...,
	)
	interp := nlquery.NewInterpreter(provider, docSvc,
		nlquery.Config{
			Model:      cfg.LLM.QueryModel,
			MaxTokens:  cfg.LLM.MaxTokens,
			MaxRounds:  cfg.Pipeline.NLMaxRounds,
			MaxHistory: cfg.Pipeline.NLMaxHistory,
		},
		nlquery.WithLogger(log),
		nlquery.WithMetrics(pipeline),
		nlquery.WithLocation(cfg.Location()),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// multipart overhead on top of the file itself
		BodyLimit: int(cfg.Pipeline.UploadMaxBytes) + 1<<20,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())

	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth_disabled", slog.String("reason", "AUTH_JWT_SECRET is empty; document routes will reject every request"))
	}
	var auth fiber.Handler
	if cfg.Auth.JWTSecret != "" {
		auth = middleware.Auth([]byte(cfg.Auth.JWTSecret))
	}

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:             db,
		Documents:      docSvc,
		Interpreter:    interp,
		Auth:           auth,
		Broker:         broker,
		Gatherer:       prometheus.DefaultGatherer,
		MaxUploadBytes: cfg.Pipeline.UploadMaxBytes,
	})

	// origin-relative, so the UI works for any host or forwarded scheme
	handlers.RegisterSwagger(app, docs.SwaggerInfo, "")

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_started",
			slog.String("addr", ":"+cfg.Port),
			slog.String("llm_provider", provider.Name()),
			slog.String("extraction_mode", cfg.Pipeline.ExtractionMode),
		)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("server_stopping")
	return app.ShutdownWithTimeout(10 * time.Second)
}
