package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gift-notify/internal/config"
	"gift-notify/internal/domain/phone"
	hhttp "gift-notify/internal/handler/http"
	"gift-notify/internal/handler/http/notification"
	"gift-notify/internal/handler/http/requestid"
	pgRepo "gift-notify/internal/infra/adapter/persistence/postgres"
	"gift-notify/internal/infra/db"
	"gift-notify/internal/infra/dedup"
	"gift-notify/internal/infra/notifier"
	"gift-notify/internal/infra/webpush"
	"gift-notify/internal/observability/logging"
	"gift-notify/internal/observability/tracing"
	envcfg "gift-notify/internal/pkg/config"
	"gift-notify/internal/repository"
	"gift-notify/internal/resilience/circuitbreaker"
	"gift-notify/internal/usecase/notify"
)

const (
	maxRequestBody  = 256 << 10
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", slog.Any("error", err))
	}

	logger := initLogger()
	cfg, err := config.LoadNotifyConfig(logger, envcfg.NewMetrics("notify"))
	if err != nil {
		logger.Error("configuration invalid", slog.Any("error", err))
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)
	if cfg.API.JWTSecret == "" {
		logger.Warn("API_JWT_SECRET not set: authenticated routes will answer 401")
	}

	stopTracing := tracing.Init(cfg.TraceSampleRatio)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database := initDatabase(ctx, logger, cfg)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	store, checks, closeDedup := setupDedup(ctx, logger, cfg, database)
	defer closeDedup()

	svc, pushClient := setupService(logger, cfg, database, store)
	version := getVersion()

	apiSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.API.Port),
		Handler:           setupRoutes(logger, cfg, svc, pushClient.PublicKey()),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.API.RequestTimeout + 5*time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	opsSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.API.MetricsPort),
		Handler:           setupOpsRoutes(database, checks, svc, version),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("notification api starting",
		slog.String("version", version),
		slog.Int("port", cfg.API.Port),
		slog.Int("metrics_port", cfg.API.MetricsPort),
		slog.Bool("dry_run", cfg.DryRun),
		slog.String("dedup_backend", cfg.Dedup.Backend),
		slog.Any("channels", cfg.ChannelsConfigured()))

	serve(ctx, logger, apiSrv, opsSrv)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stopTracing(flushCtx); err != nil {
		logger.Warn("tracer shutdown failed", slog.Any("error", err))
	}
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func getVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}

func initDatabase(ctx context.Context, logger *slog.Logger, cfg *config.NotifyConfig) *sql.DB {
	database, err := db.Open(ctx, cfg.Database.URL, cfg.Database.Pool)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// setupDedup picks the duplicate-suppression backend. The returned checks
// feed /health.
func setupDedup(ctx context.Context, logger *slog.Logger, cfg *config.NotifyConfig, database *sql.DB) (repository.DedupRepository, map[string]hhttp.Checker, func()) {
	switch cfg.Dedup.Backend {
	case config.DedupNone:
		logger.Warn("duplicate suppression disabled")
		return dedup.NoopStore{}, nil, func() {}
	case config.DedupValkey:
		client, err := dedup.NewValkeyClient(ctx, cfg.Dedup.ValkeyAddr, cfg.Dedup.ValkeyPassword)
		if err != nil {
			logger.Error("failed to connect to valkey", slog.Any("error", err))
			os.Exit(1)
		}
		store := dedup.NewValkeyStore(client)
		return store, map[string]hhttp.Checker{"valkey": store.Ping}, store.Close
	default:
		return pgRepo.NewDedupRepo(circuitbreaker.NewDBCircuitBreaker(database)), nil, func() {}
	}
}

func setupService(logger *slog.Logger, cfg *config.NotifyConfig, database *sql.DB, store repository.DedupRepository) (notify.Service, *webpush.Client) {
	rules, err := loadPhoneRules(cfg.PhoneRulesFile)
	if err != nil {
		logger.Error("failed to load phone rules", slog.Any("error", err))
		os.Exit(1)
	}

	pushClient, err := webpush.NewClient(cfg.Push)
	if err != nil {
		logger.Error("failed to load vapid keys", slog.Any("error", err))
		os.Exit(1)
	}

	waConfig := cfg.WhatsApp
	waConfig.Rules = rules
	var (
		sms      notifier.SMSSender      = notifier.NewSMSClient(cfg.SMS)
		whatsapp notifier.WhatsAppSender = notifier.NewWhatsAppClient(waConfig)
	)
	if cfg.DryRun {
		logger.Warn("dry run: SMS and WhatsApp messages are logged, not sent")
		dry := notifier.NewDryRunSender(rules)
		sms, whatsapp = dry, dry
	}

	auditDB := circuitbreaker.NewDBCircuitBreaker(database)
	return notify.NewService(notify.Dependencies{
		SMS:             sms,
		WhatsApp:        whatsapp,
		Push:            pushClient,
		Attempts:        pgRepo.NewDeliveryAttemptRepo(auditDB),
		Subscriptions:   pgRepo.NewPushSubscriptionRepo(auditDB),
		Dedup:           store,
		Breakers:        circuitbreaker.NewRegistry(cfg.Breaker.For),
		Rules:           rules,
		SMSOptions:      cfg.SMSOptions,
		PushConcurrency: cfg.PushConcurrency,
	}), pushClient
}

func loadPhoneRules(path string) (*phone.Rules, error) {
	if path == "" {
		return phone.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return phone.LoadRules(data)
}

// setupRoutes builds the public API. Middleware runs in the listed order.
func setupRoutes(logger *slog.Logger, cfg *config.NotifyConfig, svc notify.Service, vapidKey string) http.Handler {
	mux := http.NewServeMux()
	notification.Register(mux, svc, notification.Options{
		VAPIDPublicKey: vapidKey,
		JWTSecret:      []byte(cfg.API.JWTSecret),
		Limiter:        hhttp.NewCallerLimiter(cfg.API.CallerRateLimit, cfg.API.CallerRateBurst),
	})
	mux.Handle("GET /health/live", hhttp.LiveHandler{})

	return hhttp.Chain(mux,
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Logging(logger),
		hhttp.Recover(logger),
		hhttp.SecurityHeaders,
		hhttp.Limits(maxRequestBody),
		hhttp.Deadline(cfg.API.RequestTimeout),
	)
}

// setupOpsRoutes serves metrics and health on the internal port.
func setupOpsRoutes(database *sql.DB, checks map[string]hhttp.Checker, svc notify.Service, version string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", hhttp.MetricsHandler())
	mux.Handle("GET /health", &hhttp.HealthHandler{DB: database, Checks: checks, Version: version})
	mux.Handle("GET /health/ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("GET /health/live", hhttp.LiveHandler{})
	mux.Handle("GET /health/channels", &hhttp.ChannelHealthHandler{Source: svc})
	return mux
}

// serve runs both servers until ctx is cancelled or one of them fails, then
// shuts both down.
func serve(ctx context.Context, logger *slog.Logger, servers ...*http.Server) {
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s: %w", srv.Addr, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.String("addr", srv.Addr), slog.Any("error", err))
		}
	}
	logger.Info("server stopped")
}
