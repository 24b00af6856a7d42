//go:build integration

package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("profiles"),
		tcpostgres.WithUsername("posture"),
		tcpostgres.WithPassword("posture"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Connect(ctx, dsn, PoolConfig{MaxOpenConns: 8}, RetryPolicy{
		Attempts:        5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, ApplyMigrations(ctx, db, testMigrationsDir, nil))
	return NewPostgresStore(db)
}

func TestPostgresContainerConcurrentUpsertsKeepOneRow(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "field" + string(rune('a'+i))
			assert.NoError(t, s.Upsert(ctx, "user-c", RawDocument{key: json.RawMessage(`true`)}))
		}(i)
	}
	wg.Wait()

	var rows int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&rows))
	assert.Equal(t, 1, rows)

	doc, found, err := s.Get(ctx, "user-c")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, doc, 16)
}

func TestPostgresContainerGetAbsent(t *testing.T) {
	s := startPostgres(t)

	doc, found, err := s.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, doc)
}
