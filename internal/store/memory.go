package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// RawDocument is a stored profile in its keyed wire layout. Values are
// whatever the writing client sent after normalization, so older rows may
// still carry legacy shapes.
type RawDocument map[string]json.RawMessage

// Clone copies the document and its values.
func (d RawDocument) Clone() RawDocument {
	if d == nil {
		return nil
	}
	out := make(RawDocument, len(d))
	for k, v := range d {
		out[k] = slices.Clone(v)
	}
	return out
}

// MemoryStore keeps one document per user in process memory. It honours the
// same upsert and validation contract as PostgresStore and backs tests and
// single-node development runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]RawDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]RawDocument{}}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (RawDocument, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	doc, ok := s.docs[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, userID string, fields RawDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKeys(fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		doc = RawDocument{}
		s.docs[userID] = doc
	}
	for k, v := range fields {
		if k == identityKey {
			continue
		}
		doc[k] = slices.Clone(v)
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len reports how many documents are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
