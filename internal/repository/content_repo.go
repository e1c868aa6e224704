package repository

import (
	"context"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"gorm.io/gorm"
)

// ContentRepository handles content record data access
type ContentRepository interface {
	// Create inserts the content record together with its first version
	Create(ctx context.Context, content *domain.Content, first *domain.ContentVersion) error
	FindByID(ctx context.Context, id string) (*domain.Content, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new ContentRepository
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) Create(ctx context.Context, content *domain.Content, first *domain.ContentVersion) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(content).Error; err != nil {
			return err
		}
		return tx.Create(first).Error
	})
	if isDuplicateKey(err) {
		return common.ErrInvalidInput
	}
	return translate("create content", err, common.ErrContentNotFound)
}

func (r *contentRepository) FindByID(ctx context.Context, id string) (*domain.Content, error) {
	var content domain.Content
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&content).Error
	if err != nil {
		return nil, translate("find content", err, common.ErrContentNotFound)
	}
	return &content, nil
}

func (r *contentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Content{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, common.StoreError("count content", err)
	}
	return count > 0, nil
}
