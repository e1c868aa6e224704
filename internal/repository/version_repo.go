package repository

import (
	"context"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"gorm.io/gorm"
)

// VersionReader is the read side of the version log
type VersionReader interface {
	// LatestNumber returns the content's current_version_number
	LatestNumber(ctx context.Context, contentID string) (int, error)
	FindByNumber(ctx context.Context, contentID string, number int) (*domain.ContentVersion, error)
}

// VersionRepository handles content version data access
type VersionRepository interface {
	VersionReader
	// Append inserts entry and advances the content record from
	// entry.VersionNumber-1 to entry.VersionNumber in one transaction.
	// It returns ErrVersionTaken when a concurrent writer got there first.
	Append(ctx context.Context, entry *domain.ContentVersion) error
	List(ctx context.Context, contentID string, limit, offset int) ([]*domain.ContentVersion, int64, error)
	// DeleteUpTo removes versions numbered <= cutoff that are not the
	// source of any restore.
	DeleteUpTo(ctx context.Context, contentID string, cutoff int) (int64, error)
	// ContentIDsOver returns up to limit content ids with more than keep versions
	ContentIDsOver(ctx context.Context, keep, limit int) ([]string, error)
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new VersionRepository
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) LatestNumber(ctx context.Context, contentID string) (int, error) {
	var content domain.Content
	err := r.db.WithContext(ctx).
		Select("id", "current_version_number").
		Where("id = ?", contentID).
		First(&content).Error
	if err != nil {
		return 0, translate("latest version", err, common.ErrContentNotFound)
	}
	return content.CurrentVersionNumber, nil
}

func (r *versionRepository) FindByNumber(ctx context.Context, contentID string, number int) (*domain.ContentVersion, error) {
	var version domain.ContentVersion
	err := r.db.WithContext(ctx).
		Where("content_id = ? AND version_number = ?", contentID, number).
		First(&version).Error
	if err != nil {
		return nil, translate("find version", err, common.ErrVersionNotFound)
	}
	return &version, nil
}

func (r *versionRepository) Append(ctx context.Context, entry *domain.ContentVersion) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrVersionTaken
			}
			return err
		}

		res := tx.Model(&domain.Content{}).
			Where("id = ? AND current_version_number = ?", entry.ContentID, entry.VersionNumber-1).
			Updates(map[string]interface{}{
				"current_version_number": entry.VersionNumber,
				"title":                  entry.Title,
				"body":                   entry.Body,
				"excerpt":                entry.Excerpt,
				"updated_at":             entry.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// the counter moved on after we read it
			return ErrVersionTaken
		}
		return nil
	})
	if err == ErrVersionTaken {
		entry.ID = 0
		return err
	}
	return translate("append version", err, common.ErrContentNotFound)
}

func (r *versionRepository) List(ctx context.Context, contentID string, limit, offset int) ([]*domain.ContentVersion, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&domain.ContentVersion{}).Where("content_id = ?", contentID).Count(&total).Error; err != nil {
		return nil, 0, common.StoreError("count versions", err)
	}

	var versions []*domain.ContentVersion
	err := db.Where("content_id = ?", contentID).
		Order("version_number DESC").
		Limit(limit).
		Offset(offset).
		Find(&versions).Error
	if err != nil {
		return nil, 0, common.StoreError("list versions", err)
	}
	return versions, total, nil
}

func (r *versionRepository) DeleteUpTo(ctx context.Context, contentID string, cutoff int) (int64, error) {
	db := r.db.WithContext(ctx)

	// wrapped in a derived table so MySQL accepts a subquery on the delete target
	sources := db.Table("(?) AS src",
		db.Model(&domain.ContentVersion{}).
			Select("restored_from").
			Where("content_id = ? AND restored_from IS NOT NULL", contentID),
	).Select("restored_from")

	res := db.Where("content_id = ? AND version_number <= ?", contentID, cutoff).
		Where("version_number NOT IN (?)", sources).
		Delete(&domain.ContentVersion{})
	if res.Error != nil {
		return 0, common.StoreError("delete versions", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *versionRepository) ContentIDsOver(ctx context.Context, keep, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domain.ContentVersion{}).
		Select("content_id").
		Group("content_id").
		Having("COUNT(*) > ?", keep).
		Order("content_id").
		Limit(limit).
		Pluck("content_id", &ids).Error
	if err != nil {
		return nil, common.StoreError("scan versions", err)
	}
	return ids, nil
}
