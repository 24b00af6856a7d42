package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"posture/api/internal/profile"
	"posture/api/internal/store"
)

const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultStoreTimeout = 3 * time.Second
)

// Options tunes a Service. Zero values pick the defaults above.
type Options struct {
	CacheTTL     time.Duration
	StoreTimeout time.Duration
	Normalizer   *profile.Normalizer
	// IDs assigns ids to application records saved without one.
	IDs     profile.IDSource
	Logger  *slog.Logger
	Metrics *Metrics
}

// Service reads and writes profile documents through the cache.
type Service struct {
	store        DocumentStore
	cache        DocumentCache
	normalizer   *profile.Normalizer
	ids          profile.IDSource
	cacheTTL     time.Duration
	storeTimeout time.Duration
	logger       *slog.Logger
	metrics      *Metrics
	fills        singleflight.Group
}

func New(docs DocumentStore, cache DocumentCache, opts Options) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.Normalizer == nil {
		opts.Normalizer = profile.NewNormalizer(nil)
	}
	if opts.IDs == nil {
		opts.IDs = profile.NewIDGenerator()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:        docs,
		cache:        cache,
		normalizer:   opts.Normalizer,
		ids:          opts.IDs,
		cacheTTL:     opts.CacheTTL,
		storeTimeout: opts.StoreTimeout,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// Get returns the user's normalized profile. A user who never saved gets an
// empty document.
func (s *Service) Get(ctx context.Context, userID string) (profile.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return profile.Document{}, ErrUnauthorized
	}
	if doc, ok := s.cache.Get(userID); ok {
		s.metrics.operation(opGet, outcomeHit)
		return doc, nil
	}

	// Concurrent misses for one user share a single store read. The fill runs
	// on its own deadline so one caller giving up does not fail the others.
	// Only the store timeout bounds it; a fill that outlives the caller's
	// deadline may still cache its result.
	ch := s.fills.DoChan(userID, func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
		defer cancel()
		return s.fill(fillCtx, userID)
	})

	select {
	case <-ctx.Done():
		s.metrics.operation(opGet, outcomeError)
		return profile.Document{}, s.storeError(ctx, opGet, userID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.metrics.operation(opGet, outcomeError)
			return profile.Document{}, s.storeError(ctx, opGet, userID, res.Err)
		}
		result := res.Val.(filled)
		if result.found {
			s.metrics.operation(opGet, outcomeMiss)
		} else {
			s.metrics.operation(opGet, outcomeAbsent)
		}
		return result.doc.Clone(), nil
	}
}

type filled struct {
	doc   profile.Document
	found bool
}

func (s *Service) fill(ctx context.Context, userID string) (filled, error) {
	stamp := s.cache.Stamp()

	started := time.Now()
	raw, found, err := s.store.Get(ctx, userID)
	s.metrics.storeCall(opGet, started, err)
	if err != nil {
		return filled{}, err
	}
	if !found {
		return filled{}, nil
	}

	doc := s.normalizer.Normalize(raw, profile.LegacyIDs(userID))
	if !s.cache.SetIfUnchanged(userID, doc, s.cacheTTL, stamp) {
		s.logger.DebugContext(ctx, "profile fill not cached", "user_id", userID)
	}
	return filled{doc: doc, found: true}, nil
}

// Save merges payload into the user's stored profile. Every top-level key in
// payload replaces the stored key of the same name. It returns the
// normalized keys that were written.
func (s *Service) Save(ctx context.Context, userID string, payload json.RawMessage) (profile.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return profile.Document{}, ErrUnauthorized
	}

	fields, err := parsePayload(payload)
	if err != nil {
		s.metrics.operation(opSave, outcomeInvalid)
		return profile.Document{}, err
	}
	if err := store.ValidateKeys(fields); err != nil {
		s.metrics.operation(opSave, outcomeInvalid)
		return profile.Document{}, s.storeError(ctx, opSave, userID, err)
	}

	doc := s.normalizer.Normalize(fields, s.ids)
	normalized, err := doc.Fields()
	if err != nil {
		s.metrics.operation(opSave, outcomeError)
		return profile.Document{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	started := time.Now()
	err = s.store.Upsert(storeCtx, userID, normalized)
	s.metrics.storeCall(opSave, started, err)
	if err != nil {
		s.metrics.operation(opSave, outcomeError)
		return profile.Document{}, s.storeError(ctx, opSave, userID, err)
	}

	// Only a durable write may drop the cached snapshot. Forget makes the
	// next miss start a fresh read instead of joining one that began before
	// the write.
	s.cache.Invalidate(userID)
	s.fills.Forget(userID)

	s.metrics.operation(opSave, outcomeOK)
	return doc, nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func parsePayload(payload json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, validationError("Profile payload must be a JSON object", nil)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, validationError("Profile payload must be a JSON object", nil).wrap(err)
	}
	return fields, nil
}

func (s *Service) storeError(ctx context.Context, op, userID string, err error) error {
	var validationErr *store.ValidationError
	if errors.As(err, &validationErr) {
		return keyValidationError(validationErr)
	}
	err = store.Classify(err)
	s.logger.ErrorContext(ctx, "profile store call failed", "op", op, "user_id", userID, "error", err)
	if errors.Is(err, store.ErrStoreTimeout) {
		return ErrStoreTimeout.wrap(err)
	}
	return ErrStoreUnavailable.wrap(err)
}
