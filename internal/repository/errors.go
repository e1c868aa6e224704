package repository

import (
	"errors"
	"strings"

	"github.com/damoang/angple-collab/internal/common"
	"gorm.io/gorm"
)

// ErrVersionTaken means another writer committed the version number first
var ErrVersionTaken = errors.New("version number already taken")

// ErrLockRace means the lock row changed between the conditional writes and
// the follow-up read; the attempt can be repeated.
var ErrLockRace = errors.New("lock row changed during acquire")

// translate maps gorm errors onto the common taxonomy
func translate(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	default:
		return common.StoreError(op, err)
	}
}

// isDuplicateKey reports unique constraint violations. TranslateError covers
// mysql and sqlite; the message check covers drivers without a translator.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
