package domain

import "time"

// EditLock is the advisory edit lock of a content item (edit_locks table).
// A row whose ExpiresAt has passed is inert and may be taken over by anyone.
type EditLock struct {
	ContentID      string    `gorm:"column:content_id;primaryKey;type:varchar(64)" json:"content_id"`
	HolderID       string    `gorm:"column:holder_id;type:varchar(64);not null" json:"holder_id"`
	AcquiredAt     time.Time `gorm:"column:acquired_at" json:"acquired_at"`
	LastActivityAt time.Time `gorm:"column:last_activity_at" json:"last_activity_at"`
	ExpiresAt      time.Time `gorm:"column:expires_at;index" json:"expires_at"`
}

// TableName returns the table name for EditLock
func (EditLock) TableName() string {
	return "edit_locks"
}

// IsExpired reports whether the lock has lapsed at now
func (l *EditLock) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// AcquireLockRequest represents request for acquiring a lock
type AcquireLockRequest struct {
	TTLMinutes int `json:"ttl_minutes"`
}

// ExtendLockRequest represents request for extending a lock
type ExtendLockRequest struct {
	Minutes int `json:"minutes"`
}
