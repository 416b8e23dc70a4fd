package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"gift-notify/internal/config"
	pgRepo "gift-notify/internal/infra/adapter/persistence/postgres"
	"gift-notify/internal/infra/db"
	workerPkg "gift-notify/internal/infra/worker"
	"gift-notify/internal/observability/logging"
	envcfg "gift-notify/internal/pkg/config"
	"gift-notify/internal/resilience/circuitbreaker"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", slog.Any("error", err))
	}

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	cfg, err := config.LoadNotifyConfig(logger, envcfg.NewMetrics("notify"))
	if err != nil {
		logger.Error("configuration invalid", slog.Any("error", err))
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("prune_schedule", workerConfig.PruneSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("retention", workerConfig.Retention),
		slog.Duration("prune_timeout", workerConfig.PruneTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.Database.URL, cfg.Database.Pool)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", workerConfig.HealthPort), logger)
	healthServer.AddCheck("database", database.PingContext)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	if cfg.Dedup.Backend != config.DedupPostgres {
		// Valkey expires claims itself; nothing to prune.
		logger.Info("dedup backend needs no pruning, idling",
			slog.String("dedup_backend", cfg.Dedup.Backend))
		healthServer.SetReady(true)
		<-ctx.Done()
		return
	}

	runScheduler(ctx, logger, database, workerConfig, workerMetrics, healthServer)
}

// runScheduler prunes expired dedup claims on the configured schedule until
// ctx is cancelled.
func runScheduler(ctx context.Context, logger *slog.Logger, database *sql.DB, cfg *workerPkg.Config, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	store := pgRepo.NewDedupRepo(circuitbreaker.NewDBCircuitBreaker(database))
	pruner := workerPkg.NewPruner(store, *cfg, metrics, logger)

	c := cron.New(cron.WithLocation(cfg.Location()))
	if _, err := pruner.Schedule(ctx, c); err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.PruneOnStart {
		if _, err := pruner.Run(ctx); err != nil {
			logger.Error("initial dedup prune failed", slog.Any("error", err))
		}
	}

	c.Start()
	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", cfg.PruneSchedule),
		slog.String("timezone", cfg.Timezone))

	<-ctx.Done()
	healthServer.SetReady(false)
	logger.Info("worker stopping, waiting for running jobs")
	<-c.Stop().Done()
	logger.Info("worker stopped")
}
