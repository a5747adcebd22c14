package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"

	"docintel/internal/config"
	"docintel/internal/database"
	"docintel/internal/extraction"
	"docintel/internal/llm"
	"docintel/internal/logger"
	"docintel/internal/otel"
	"docintel/internal/queue"
	"docintel/internal/repository/postgres"
	"docintel/internal/service"
	"docintel/internal/storage"
)

// The worker drains extraction:run tasks when EXTRACTION_MODE=queued.
func main() {
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.Location())

	if err := run(cfg, log); err != nil {
		log.Error("worker_exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	shutdownTracing, err := otel.Init(context.Background(), "docintel-worker", log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	db, err := database.NewPostgres(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize model provider: %w", err)
	}

	// retries belong to the queue, so each task makes one model call
	docSvc := service.NewDocumentService(
		objStore,
		postgres.NewDocumentPostgres(db),
		extraction.NewInvoker(provider, cfg.LLM.ExtractionModel, cfg.LLM.MaxTokens),
		service.Config{MaxBytes: cfg.Pipeline.UploadMaxBytes, ExtractionAttempts: 1},
		service.WithLogger(log),
	)

	srv := asynq.NewServer(queue.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: 4,
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return time.Duration(n) * 10 * time.Second
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Warn("task_failed", slog.String("type", task.Type()), slog.String("error", err.Error()))
		}),
	})

	log.Info("worker_started", slog.String("redis_addr", cfg.Redis.Addr), slog.String("llm_provider", provider.Name()))
	// Run blocks until SIGTERM or SIGINT.
	return srv.Run(queue.NewExtractionHandler(docSvc, log).Mux())
}
