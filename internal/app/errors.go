package app

import (
	"errors"
	"fmt"
	"net/http"

	"posture/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any

	cause error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches on Code so wrapped copies of the sentinels below still compare
// equal to them.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

func (e *DomainError) wrap(cause error) *DomainError {
	copied := *e
	copied.cause = cause
	return &copied
}

var (
	ErrUnauthorized     = domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	ErrAuthUnavailable  = domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication is temporarily unavailable", nil)
	ErrStoreUnavailable = domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Profile store is unavailable", nil)
	ErrStoreTimeout     = domainError(http.StatusGatewayTimeout, "STORE_TIMEOUT", "Profile store timed out", nil)
	ErrValidation       = domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Invalid profile payload", nil)
)

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusBadRequest, ErrValidation.Code, message, details)
}

// keyValidationError surfaces the offending key to the caller.
func keyValidationError(err *store.ValidationError) *DomainError {
	details := map[string]any{"key": err.Key}
	if err.Path != "" {
		details["path"] = err.Path
	}
	return validationError(err.Error(), details).wrap(err)
}
