package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/damoang/angple-collab/internal/domain"
)

// Business logic errors
var (
	// General errors
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")

	// Content errors
	ErrContentNotFound = fmt.Errorf("content %w", ErrNotFound)
	ErrVersionNotFound = fmt.Errorf("version %w", ErrNotFound)
	ErrLockNotFound    = fmt.Errorf("lock %w", ErrNotFound)

	// Collaboration errors
	ErrLockConflict       = errors.New("content is locked by another editor")
	ErrLockRequired       = errors.New("an active edit lock is required")
	ErrVersionConflict    = errors.New("conflicting edits detected")
	ErrRaceRetryExhausted = errors.New("version number contention, retry later")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("store unavailable")
)

// LockConflictError reports the live lock that blocked an operation
type LockConflictError struct {
	Holder    string
	ExpiresAt time.Time
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("%s: held by %s until %s", ErrLockConflict, e.Holder, e.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *LockConflictError) Unwrap() error { return ErrLockConflict }

// VersionConflictError carries the report that rejected a save
type VersionConflictError struct {
	Report *domain.ConflictReport
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: fields %v changed since version %d", ErrVersionConflict, e.Report.ConflictingFields, e.Report.BaseVersion)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// StoreError wraps an infrastructure failure so it matches ErrStoreUnavailable
// while keeping the driver error in the chain.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
