package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/stocksync/internal/config"
	"github.com/JonMunkholm/stocksync/internal/core"
	"github.com/JonMunkholm/stocksync/internal/logging"
	"github.com/JonMunkholm/stocksync/internal/metrics"
	"github.com/JonMunkholm/stocksync/internal/session"
	"github.com/JonMunkholm/stocksync/internal/store"
	"github.com/JonMunkholm/stocksync/internal/web"
	"github.com/JonMunkholm/stocksync/internal/woocommerce"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	history, closeHistory, err := openHistory(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open import history", "error", err)
		os.Exit(1)
	}
	defer closeHistory()

	sessions, closeSessions, err := openSessions(ctx, cfg.Redis)
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer closeSessions()

	gateway, err := woocommerce.New(woocommerce.Config{
		StoreURL:          cfg.Catalog.StoreURL,
		ConsumerKey:       cfg.Catalog.ConsumerKey,
		ConsumerSecret:    cfg.Catalog.ConsumerSecret,
		Timeout:           cfg.Catalog.Timeout,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		PageSize:          cfg.Catalog.PageSize,
	}, woocommerce.WithLogger(slog.Default().With("component", "woocommerce")))
	if err != nil {
		slog.Error("failed to create catalog client", "error", err)
		os.Exit(1)
	}

	match, err := core.ParseSKUMatch(cfg.Import.SKUMatch)
	if err != nil {
		slog.Error("invalid SKU match mode", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	service := core.NewService(gateway, sessions, history, core.ServiceConfig{
		MaxFileSize:          cfg.Import.MaxFileSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		MaxWaitTime:          cfg.Import.MaxWaitTime,
		ApplyTimeout:         cfg.Import.ApplyTimeout,
		Workers:              cfg.Import.Workers,
		Match:                match,
	}, core.WithObserver(m), core.WithLogger(slog.Default()))
	m.ObserveActiveImports(func() int { return service.LimiterStatus().Active })

	if status := service.CatalogStatus(ctx); status.Connected {
		slog.Info("catalog reachable", "store", cfg.Catalog.StoreURL)
	} else {
		slog.Warn("catalog not reachable at startup; imports will fail until it is",
			"store", cfg.Catalog.StoreURL,
			"code", status.Detail.Code,
		)
	}

	server := web.NewServer(service, cfg, m)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
		RetentionDays: cfg.History.RetentionDays,
		CheckInterval: cfg.History.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running applies finish so no row is left half-reported.
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openHistory connects to PostgreSQL when DATABASE_URL is set and falls
// back to in-memory history otherwise.
func openHistory(ctx context.Context, cfg config.DatabaseConfig) (core.HistoryStore, func(), error) {
	if cfg.URL == "" {
		slog.Warn("DATABASE_URL not set; import history is kept in memory")
		return store.NewMemoryStore(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	pg := store.NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}

// openSessions connects to Redis when REDIS_ADDR is set and falls back to
// in-memory sessions otherwise.
func openSessions(ctx context.Context, cfg config.RedisConfig) (core.SessionStore, func(), error) {
	if cfg.Addr == "" {
		slog.Warn("REDIS_ADDR not set; pending imports are kept in memory")
		return session.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	rs := session.NewRedisStore(client, cfg.SessionTTL)
	if err := rs.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	slog.Info("connected to redis", "addr", cfg.Addr)
	return rs, func() { _ = client.Close() }, nil
}
