package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// identityKey is the row key; it is never written into the document body.
const identityKey = "userId"

var synchronousCommitLevels = map[string]struct{}{
	"on":           {},
	"off":          {},
	"local":        {},
	"remote_write": {},
	"remote_apply": {},
}

// PostgresStore keeps one JSONB document per user in the profiles table.
type PostgresStore struct {
	db         *sql.DB
	syncCommit string
}

// Option configures a PostgresStore.
type Option func(*PostgresStore)

// WithSynchronousCommit sets the write concern applied to every upsert
// transaction. Unknown levels are ignored.
func WithSynchronousCommit(level string) Option {
	return func(s *PostgresStore) {
		level = strings.ToLower(strings.TrimSpace(level))
		if _, ok := synchronousCommitLevels[level]; ok {
			s.syncCommit = level
		}
	}
}

func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	s := &PostgresStore{db: db, syncCommit: "on"}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the stored document, or found=false when the user never saved.
func (s *PostgresStore) Get(ctx context.Context, userID string) (RawDocument, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM profiles WHERE user_id = $1`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read profile: %w", err)
	}

	doc := RawDocument{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, false, fmt.Errorf("decode profile: %w", err)
	}
	return doc, true, nil
}

// Upsert merges fields into the user's document, creating it when absent.
// The merge is shallow: each top-level key in fields replaces the stored
// value for that key wholesale, other stored keys are left alone.
func (s *PostgresStore) Upsert(ctx context.Context, userID string, fields RawDocument) error {
	if err := ValidateKeys(fields); err != nil {
		return err
	}
	body := make(RawDocument, len(fields))
	for k, v := range fields {
		if k != identityKey {
			body[k] = v
		}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.syncCommit != "on" {
		if _, err := tx.ExecContext(ctx, `SELECT set_config('synchronous_commit', $1, true)`, s.syncCommit); err != nil {
			return fmt.Errorf("set write concern: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, doc)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (user_id) DO UPDATE
		SET doc = profiles.doc || EXCLUDED.doc, updated_at = NOW()
	`, userID, string(encoded)); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile upsert: %w", err)
	}
	return nil
}
