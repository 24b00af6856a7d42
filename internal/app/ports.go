package app

//go:generate mockgen -source=ports.go -destination=mocks/ports.go -package=mocks

import (
	"context"
	"time"

	"posture/api/internal/cache"
	"posture/api/internal/profile"
	"posture/api/internal/store"
)

// DocumentStore persists one raw profile document per user.
type DocumentStore interface {
	Get(ctx context.Context, userID string) (store.RawDocument, bool, error)
	Upsert(ctx context.Context, userID string, fields store.RawDocument) error
	Ping(ctx context.Context) error
}

// DocumentCache holds normalized documents between reads.
type DocumentCache interface {
	Get(userID string) (profile.Document, bool)
	Stamp() cache.Stamp
	SetIfUnchanged(userID string, doc profile.Document, ttl time.Duration, stamp cache.Stamp) bool
	Invalidate(userID string)
}

// NewDocumentCache builds the in-process cache the service expects.
func NewDocumentCache(cfg cache.Config) *cache.Cache[string, profile.Document] {
	return cache.New[string](cfg, profile.Document.Clone)
}
