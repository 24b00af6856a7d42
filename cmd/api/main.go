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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"posture/api/internal/app"
	"posture/api/internal/auth"
	"posture/api/internal/cache"
	"posture/api/internal/config"
	"posture/api/internal/logger"
	"posture/api/internal/profile"
	"posture/api/internal/session"
	"posture/api/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("posture api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := profile.LoadCatalog(cfg.FieldCatalog)
	if err != nil {
		return fmt.Errorf("field catalog: %w", err)
	}

	docs, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var revocations auth.RevocationList
	if cfg.RedisURL != "" {
		redisList, err := session.NewRedisRevocationList(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisList.Close()
		revocations = redisList
		log.Info("token revocation enabled", "backend", "redis")
	} else {
		log.Info("token revocation disabled; set REDIS_URL to enable logout")
	}

	registry := prometheus.DefaultRegisterer
	profiles := app.NewDocumentCache(cache.Config{
		Name:    "profile",
		Logger:  log,
		Metrics: cache.NewMetrics(registry, "profile"),
	})
	service := app.New(docs, profiles, app.Options{
		CacheTTL:     cfg.CacheTTL,
		StoreTimeout: cfg.StoreTimeout,
		Normalizer:   profile.NewNormalizer(catalog),
		IDs:          profile.NewIDGenerator(),
		Logger:       log,
		Metrics:      app.NewMetrics(registry),
	})
	gateway := auth.NewGateway(cfg.JWTSecret, cfg.JWTIssuer, revocations)

	httpServer := app.NewHTTPServer(service, gateway, app.HTTPOptions{
		CORSOrigin: cfg.CORSOrigin,
		Logger:     log,
		Gatherer:   prometheus.DefaultGatherer,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("posture api listening", "addr", cfg.Addr, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		profiles.Run(groupCtx, cfg.CacheSweep)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
		return nil
	})
	return group.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (app.DocumentStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("using in-memory profile store; profiles are lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	case config.BackendPostgres:
		db, err := store.Connect(ctx, cfg.DatabaseURL,
			store.PoolConfig{MaxOpenConns: cfg.StoreMaxOpenConns},
			store.RetryPolicy{Attempts: cfg.StoreConnectTries, MaxInterval: cfg.StoreConnectMaxWait},
			log,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, log); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrations failed: %w", err)
		}
		return store.NewPostgresStore(db, store.WithSynchronousCommit(cfg.StoreSyncCommit)), closeDB(db, log), nil
	default:
		return nil, nil, fmt.Errorf("unknown PROFILE_STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func closeDB(db *sql.DB, log *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("closing database", "error", err)
		}
	}
}
