package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig tunes the database/sql pool.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

func Open(ctx context.Context, databaseURL string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 20
	}
	if pool.MaxIdleConns <= 0 || pool.MaxIdleConns > pool.MaxOpenConns {
		pool.MaxIdleConns = pool.MaxOpenConns / 2
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetMaxOpenConns(pool.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// RetryPolicy bounds the startup connection attempts.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Connect opens the database, retrying with exponential backoff until it
// answers or the policy runs out of attempts. It is meant for process startup
// only; request paths never retry.
func Connect(ctx context.Context, databaseURL string, pool PoolConfig, policy RetryPolicy, logger *slog.Logger) (*sql.DB, error) {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	b.MaxElapsedTime = 0

	var (
		db      *sql.DB
		attempt int
	)
	operation := func() error {
		attempt++
		conn, err := Open(ctx, databaseURL, pool)
		if err != nil {
			if logger != nil {
				logger.WarnContext(ctx, "database not ready",
					"attempt", attempt,
					"max_attempts", policy.Attempts,
					"error", err,
				)
			}
			return err
		}
		db = conn
		return nil
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.Attempts-1)), ctx)
	if err := backoff.Retry(operation, retry); err != nil {
		return nil, fmt.Errorf("connect after %d attempts: %w", attempt, err)
	}
	return db, nil
}
