package service

import (
	"context"
	"strings"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/repository"
	"github.com/damoang/angple-collab/pkg/logger"
	"github.com/google/uuid"
)

// ContentService creates and reads content records
type ContentService interface {
	CreateContent(ctx context.Context, req *domain.CreateContentRequest, authorID string) (*domain.Content, error)
	GetContent(ctx context.Context, contentID string) (*domain.Content, error)
}

type contentService struct {
	repo  repository.ContentRepository
	clock common.Clock
}

// NewContentService creates a new ContentService
func NewContentService(repo repository.ContentRepository, clock common.Clock) ContentService {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &contentService{repo: repo, clock: clock}
}

// CreateContent stores a new content item together with version 1
func (s *contentService) CreateContent(ctx context.Context, req *domain.CreateContentRequest, authorID string) (*domain.Content, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, common.ErrInvalidInput
	}

	now := s.clock.Now()
	snapshot := domain.Snapshot{Title: req.Title, Body: req.Body, Excerpt: req.Excerpt}
	content := &domain.Content{
		ID:                   uuid.NewString(),
		WebsiteID:            req.WebsiteID,
		CurrentVersionNumber: 1,
		Snapshot:             snapshot,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	first := &domain.ContentVersion{
		ContentID:     content.ID,
		VersionNumber: 1,
		Snapshot:      snapshot,
		AuthorID:      authorID,
		CreatedAt:     now,
	}

	if err := s.repo.Create(ctx, content, first); err != nil {
		return nil, err
	}

	logger.WithComponent("content").Info().
		Str("content_id", content.ID).
		Str("website_id", content.WebsiteID).
		Str("author", authorID).
		Msg("content created")
	return content, nil
}

func (s *contentService) GetContent(ctx context.Context, contentID string) (*domain.Content, error) {
	return s.repo.FindByID(ctx, contentID)
}
