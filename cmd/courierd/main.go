// Command courierd runs the email delivery service: the routing client, the
// durable outbox worker, and the admin email-health API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	rdb "github.com/redis/go-redis/v9"

	"github.com/lattiq/courier"
	"github.com/lattiq/courier/internal/adminapi"
	"github.com/lattiq/courier/internal/config"
	"github.com/lattiq/courier/internal/logger"
	"github.com/lattiq/courier/internal/metrics"
	"github.com/lattiq/courier/internal/outbox"
	"github.com/lattiq/courier/internal/postgres"
	"github.com/lattiq/courier/internal/ratelimit"
	"github.com/lattiq/courier/internal/store"
	"github.com/lattiq/courier/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (YAML)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	log.Info("starting courierd",
		"version", courier.GetVersion(),
		"port", cfg.Server.Port,
		"providers", len(cfg.Providers))

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database connection", "error", err)
		}
	}()

	if err := migrate(db); err != nil {
		return err
	}

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	quotaStore := postgres.NewQuotaStore(db)
	outboxStore := postgres.NewOutboxStore(db)
	sendLog := postgres.NewSendLogStore(db)
	breakerEvents := postgres.NewBreakerEventStore(db)

	queue := outbox.NewQueue(outboxStore, cfg.Outbox.MaxAttempts)
	tracker := postgres.NewQuotaTracker(quotaStore, quotaLimits(cfg.Providers))

	client, err := buildClient(cfg, tracker, queue, sendLog)
	if err != nil {
		return fmt.Errorf("failed to build courier client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("error closing courier client", "error", err)
		}
	}()

	client.SetBreakerListener(breakerListener(breakerEvents, log))

	worker, err := outbox.NewWorker(outboxStore, client, outboxConfig(cfg.Outbox), log)
	if err != nil {
		return fmt.Errorf("failed to build outbox worker: %w", err)
	}
	if err := worker.Start(); err != nil {
		return fmt.Errorf("failed to start outbox worker: %w", err)
	}
	defer worker.Stop()

	limiter := buildLimiter(cfg.Redis)

	api := adminapi.NewServer(client, queue, outboxStore, sendLog, breakerEvents, log,
		adminapi.WithLimiter(limiter),
		adminapi.WithVersion(courier.GetVersion()))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pollGauges(ctx, client, outboxStore, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("admin API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("admin API server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin API shutdown failed: %w", err)
	}
	return nil
}

// openDatabase opens and verifies the PostgreSQL connection.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// migrate runs the embedded goose migrations.
func migrate(db *sql.DB) error {
	goose.SetLogger(&slogGooseLogger{})
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level without exiting so run can handle the failure.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

// quotaLimits builds the per-provider limits map keyed by routing name.
func quotaLimits(providers []config.ProviderConfig) map[string]courier.QuotaLimits {
	limits := make(map[string]courier.QuotaLimits, len(providers))
	for _, pc := range providers {
		limits[providerName(pc)] = courier.QuotaLimits{
			Daily:   pc.DailyLimit,
			Monthly: pc.MonthlyLimit,
		}
	}
	return limits
}

func providerName(pc config.ProviderConfig) string {
	if pc.Name != "" {
		return pc.Name
	}
	return pc.Type
}

// buildClient assembles the courier client from service configuration.
func buildClient(cfg *config.Config, tracker courier.QuotaTracker, queue *outbox.Queue, sendLog store.SendLogStore) (*courier.Client, error) {
	courierCfg := courier.DefaultConfig()
	for _, pc := range cfg.Providers {
		courierCfg.Providers = append(courierCfg.Providers, courier.ProviderConfig{
			Type:         courier.ProviderType(pc.Type),
			Name:         pc.Name,
			Priority:     pc.Priority,
			Settings:     courier.ProviderSettings(pc.Settings),
			DailyLimit:   pc.DailyLimit,
			MonthlyLimit: pc.MonthlyLimit,
		})
	}

	return courier.New(courierCfg,
		courier.WithQuotaTracker(tracker),
		courier.WithOutbox(queue),
		courier.WithDeliveryObserver(deliveryObserver(sendLog)),
	)
}

// deliveryObserver records every provider attempt in the send log and the
// Prometheus counters.
func deliveryObserver(sendLog store.SendLogStore) courier.DeliveryObserver {
	return func(ctx context.Context, rec courier.DeliveryRecord) {
		status := store.SendStatusSent
		errMsg := ""
		if rec.Err != nil {
			status = store.SendStatusFailed
			errMsg = rec.Err.Error()
		}

		metrics.SendAttempts.WithLabelValues(rec.Provider, string(status)).Inc()
		metrics.SendDuration.WithLabelValues(rec.Provider).Observe(float64(rec.Duration.Milliseconds()))

		entry := &store.SendLogEntry{
			Provider:   rec.Provider,
			MessageID:  rec.MessageID,
			Recipients: rec.Recipients,
			Subject:    rec.Subject,
			Status:     status,
			Error:      errMsg,
			DurationMS: rec.Duration.Milliseconds(),
		}
		if err := sendLog.Insert(ctx, entry); err != nil {
			logger.FromContext(ctx).Error("failed to record send log entry",
				"provider", rec.Provider,
				"error", err)
		}
	}
}

// breakerListener persists circuit transitions and keeps the state gauge
// current.
func breakerListener(events store.BreakerEventStore, log *slog.Logger) courier.BreakerListener {
	return func(provider string, from, to courier.BreakerState) {
		log.Warn("circuit breaker transition",
			"provider", provider,
			"from", from.String(),
			"to", to.String())

		metrics.BreakerState.WithLabelValues(provider).Set(breakerStateValue(to))

		event := &store.BreakerEvent{
			Provider:  provider,
			FromState: from.String(),
			ToState:   to.String(),
		}
		if err := events.Insert(context.Background(), event); err != nil {
			log.Error("failed to record breaker event",
				"provider", provider,
				"error", err)
		}
	}
}

func breakerStateValue(s courier.BreakerState) float64 {
	switch s {
	case courier.BreakerOpen:
		return 2
	case courier.BreakerHalfOpen:
		return 1
	default:
		return 0
	}
}

// outboxConfig merges service configuration over the worker defaults.
func outboxConfig(oc config.OutboxConfig) outbox.Config {
	c := outbox.DefaultConfig()
	if oc.WorkerCount > 0 {
		c.WorkerCount = oc.WorkerCount
	}
	if oc.PollInterval > 0 {
		c.PollInterval = oc.PollInterval
	}
	if oc.BatchSize > 0 {
		c.BatchSize = oc.BatchSize
	}
	if oc.MaxAttempts > 0 {
		c.MaxAttempts = oc.MaxAttempts
	}
	if oc.InitialBackoff > 0 {
		c.InitialBackoff = oc.InitialBackoff
	}
	if oc.MaxBackoff > 0 {
		c.MaxBackoff = oc.MaxBackoff
	}
	if oc.BackoffMultiplier >= 1.0 {
		c.BackoffMultiplier = oc.BackoffMultiplier
	}
	if oc.StuckAge > 0 {
		c.StuckAge = oc.StuckAge
	}
	if oc.StuckCheckInterval > 0 {
		c.StuckCheckInterval = oc.StuckCheckInterval
	}
	return c
}

// buildLimiter wires the Redis fixed-window limiter, or a no-op when no
// Redis address is configured.
func buildLimiter(rc config.RedisConfig) ratelimit.Limiter {
	if rc.Addr == "" {
		return ratelimit.NoopLimiter{}
	}
	client := rdb.NewClient(&rdb.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	window := rc.RateLimitSpan
	if window <= 0 {
		window = time.Minute
	}
	max := rc.RateLimitMax
	if max <= 0 {
		max = 60
	}
	return ratelimit.NewRedisLimiter(client, "courier:rl:", max, window)
}

// pollGauges refreshes the queue depth and quota usage gauges.
func pollGauges(ctx context.Context, client *courier.Client, outboxStore store.OutboxStore, log *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := outboxStore.Stats(ctx)
			if err != nil {
				log.Warn("failed to refresh outbox depth gauge", "error", err)
			} else {
				metrics.OutboxDepth.WithLabelValues("pending").Set(float64(stats.Pending))
				metrics.OutboxDepth.WithLabelValues("processing").Set(float64(stats.Processing))
				metrics.OutboxDepth.WithLabelValues("sent").Set(float64(stats.Sent))
				metrics.OutboxDepth.WithLabelValues("failed").Set(float64(stats.Failed))
			}

			health, err := client.Health(ctx)
			if err != nil {
				log.Warn("failed to refresh quota gauges", "error", err)
				continue
			}
			for _, h := range health {
				metrics.QuotaUsed.WithLabelValues(h.Provider, "daily").Set(float64(h.Daily.Used))
				metrics.QuotaUsed.WithLabelValues(h.Provider, "monthly").Set(float64(h.Monthly.Used))
			}
		}
	}
}
