package service

import (
	"context"
	"fmt"

	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/pkg/cache"
)

// FormsRepository defines the interface for forms data access.
type FormsRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Form, error)
	Upsert(ctx context.Context, slug string, req *models.UpsertFormRequest) (*models.Form, error)
}

// FormsService handles business logic for form schemas. Published forms are
// read on every session start, so lookups go through an in-process cache that
// upserts invalidate.
type FormsService struct {
	repo  FormsRepository
	cache *cache.LoaderCache[string, *models.Form]
}

// NewFormsService creates a forms service with a slug-keyed cache of
// cacheSize entries.
func NewFormsService(repo FormsRepository, cacheSize int) (*FormsService, error) {
	c, err := cache.NewLoaderCache[string, *models.Form](cacheSize, func(slug string) string { return slug })
	if err != nil {
		return nil, fmt.Errorf("create forms cache: %w", err)
	}

	return &FormsService{repo: repo, cache: c}, nil
}

// GetForm retrieves a form by slug, served from cache when warm.
func (s *FormsService) GetForm(ctx context.Context, slug string) (*models.Form, error) {
	return s.cache.Get(ctx, slug, s.repo.GetBySlug)
}

// GetPublishedForm retrieves a form by slug and requires it to be published.
// Unpublished forms are indistinguishable from missing ones to callers.
func (s *FormsService) GetPublishedForm(ctx context.Context, slug string) (*models.Form, error) {
	form, err := s.GetForm(ctx, slug)
	if err != nil {
		return nil, err
	}

	if !form.Published {
		return nil, apperrors.NewNotFoundError("form", "form not found")
	}

	return form, nil
}

// UpsertForm validates and stores a form schema, then drops the cached copy
// so the next read sees the new version.
func (s *FormsService) UpsertForm(ctx context.Context, slug string, req *models.UpsertFormRequest) (*models.Form, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, apperrors.NewValidationError("config", err.Error())
	}

	form, err := s.repo.Upsert(ctx, slug, req)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(slug)

	return form, nil
}
