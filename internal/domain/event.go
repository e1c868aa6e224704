package domain

import "time"

// EditEventType names a change pushed to watchers of a content item
type EditEventType string

const (
	EventLockAcquired    EditEventType = "lock_acquired"
	EventLockReleased    EditEventType = "lock_released"
	EventLockExtended    EditEventType = "lock_extended"
	EventVersionSaved    EditEventType = "version_saved"
	EventVersionRestored EditEventType = "version_restored"
)

// EditEvent is a notification about a lock or version change.
// Events are informational; clients still learn the truth from the API.
type EditEvent struct {
	Type          EditEventType `json:"type"`
	ContentID     string        `json:"content_id"`
	ActorID       string        `json:"actor_id"`
	VersionNumber int           `json:"version_number,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
