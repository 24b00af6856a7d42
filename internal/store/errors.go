package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable reports a store that could not serve the request.
	ErrStoreUnavailable = errors.New("profile store unavailable")
	// ErrStoreTimeout reports a store call that exceeded its deadline.
	ErrStoreTimeout = errors.New("profile store timeout")
)

// ValidationError rejects a payload key the store cannot hold safely.
type ValidationError struct {
	Key    string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path != "" && e.Path != e.Key {
		return fmt.Sprintf("key %q at %s %s", e.Key, e.Path, e.Reason)
	}
	return fmt.Sprintf("key %q %s", e.Key, e.Reason)
}

// Classify maps a store error onto the store taxonomy: validation errors pass
// through, deadlines become ErrStoreTimeout and everything else
// ErrStoreUnavailable. The original error stays in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return err
	}
	if errors.Is(err, ErrStoreTimeout) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
