package migration

import (
	"github.com/damoang/angple-collab/internal/domain"
	"gorm.io/gorm"
)

// Run executes AutoMigrate for the collaboration tables.
// content_versions carries the (content_id, version_number) unique index
// that linearizes version number assignment; edit_locks is keyed by content_id
// so at most one lock row exists per content item.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Content{},
		&domain.ContentVersion{},
		&domain.EditLock{},
	)
}
