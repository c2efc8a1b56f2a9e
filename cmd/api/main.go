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
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/soheilhy/cmux"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/ai"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/api"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/cache"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/config"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/email"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/rpc"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/store"
	stripeinternal "github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/stripe"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// Root context cancelled by OS signal. Every background loop respects it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Survey catalog ────────────────────────────────────────────────────────
	catalog, err := loadCatalog(cfg.SurveyCatalogPath)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	calc := assessment.NewCalculator(catalog, logger)
	logger.Info("survey catalog loaded", "questions", len(catalog.Questions()), "max_score", catalog.MaxScore())

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	st := store.New(pool, queries)

	// ── Result cache ──────────────────────────────────────────────────────────
	var resultCache cache.ResultCache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.ResultCacheTTL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		resultCache = rc
		logger.Info("result cache: redis", "ttl", cfg.ResultCacheTTL)
	} else {
		resultCache = cache.NewMemory(cfg.ResultCacheTTL)
		logger.Info("result cache: in-memory", "ttl", cfg.ResultCacheTTL)
	}

	// ── Stripe ────────────────────────────────────────────────────────────────
	stripeClient := stripeinternal.NewClient(cfg.StripeSecretKey)

	// ── AI ────────────────────────────────────────────────────────────────────
	advisor := newAdvisor(cfg, logger)

	// ── Email (Resend) ────────────────────────────────────────────────────────
	mailer := email.NewResendClient(
		cfg.ResendAPIKey,
		cfg.EmailFromAddr,
		cfg.EmailFromName,
		cfg.BaseURL,
	)

	// ── Worker ────────────────────────────────────────────────────────────────
	job := worker.NewJob(queries, st, advisor, mailer, logger)
	runner := worker.NewRunner(job, st, queries, worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
	}, logger)

	// ── HTTP ──────────────────────────────────────────────────────────────────
	handler, stopLimiter := api.NewServer(api.Deps{
		Queries:    queries,
		Store:      st,
		Calculator: calc,
		Cache:      resultCache,
		Stripe:     stripeClient,
		Worker:     runner, // *Runner satisfies worker.Enqueuer
		Mailer:     mailer,
	}, api.Config{
		BaseURL:             cfg.BaseURL,
		StripeWebhookSecret: cfg.StripeWebhookSecret,
		Env:                 cfg.Env,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
	}, logger)
	defer stopLimiter()

	httpSrv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── gRPC health ───────────────────────────────────────────────────────────
	rpcSrv := rpc.New(logger)
	go rpcSrv.MonitorDB(ctx, pool, 15*time.Second)

	// ── One port, two protocols ───────────────────────────────────────────────
	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	go runner.Start(ctx)

	serverErr := make(chan error, 3)
	go func() {
		if err := rpcSrv.Serve(grpcL); err != nil && !errors.Is(err, cmux.ErrListenerClosed) {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := httpSrv.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			serverErr <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("server listening", "addr", lis.Addr().String())
		if err := mux.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			serverErr <- fmt.Errorf("cmux: %w", err)
		}
	}()

	// Block until either a signal arrives or a server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	rpcSrv.Stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	mux.Close()

	logger.Info("shutdown complete")
	return nil
}

// loadCatalog reads the survey catalog from path, or returns the built-in
// one when path is empty.
func loadCatalog(path string) (*assessment.Catalog, error) {
	if path == "" {
		return assessment.DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return assessment.ParseCatalog(raw)
}

// newAdvisor wires the coach-note providers. Anthropic is primary and
// DeepSeek the fallback when both keys are set. With no key at all the
// worker uses static notes.
func newAdvisor(cfg *config.Config, logger *slog.Logger) ai.Advisor {
	var primary, secondary ai.Advisor
	if cfg.AnthropicAPIKey != "" {
		primary = ai.NewAnthropicAdvisor(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
	if cfg.DeepSeekAPIKey != "" {
		secondary = ai.NewDeepSeekAdvisor(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.DeepSeekBaseURL)
	}

	switch {
	case primary != nil && secondary != nil:
		logger.Info("ai: using Anthropic with DeepSeek fallback")
	case primary != nil:
		logger.Info("ai: using Anthropic only")
	case secondary != nil:
		logger.Info("ai: using DeepSeek only")
	default:
		logger.Warn("ai: no provider configured, coach notes will be static")
		return nil
	}
	return ai.NewFallbackAdvisor(primary, secondary, logger)
}

// openDB opens the connection pool and verifies it is reachable.
func openDB(dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	return pool, db.New(pool), nil
}
