// Package repository handles data access against PostgreSQL via pgx.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/pkg/forms"
)

// FormsRepository handles data access for published forms.
type FormsRepository struct {
	db *pgxpool.Pool
}

// NewFormsRepository creates a new forms repository.
func NewFormsRepository(db *pgxpool.Pool) *FormsRepository {
	return &FormsRepository{db: db}
}

// GetBySlug retrieves a form by its slug.
func (r *FormsRepository) GetBySlug(ctx context.Context, slug string) (*models.Form, error) {
	query := `
		SELECT id, slug, name, description, logo_url, favicon_url, published,
		       config, rejection_rules, approved_url, created_at, updated_at
		FROM forms
		WHERE slug = $1
	`

	var (
		form          models.Form
		configJSON    []byte
		rejectionJSON []byte
	)

	err := r.db.QueryRow(ctx, query, slug).Scan(
		&form.ID, &form.Slug, &form.Name, &form.Description, &form.LogoURL,
		&form.FaviconURL, &form.Published, &configJSON, &rejectionJSON,
		&form.ApprovedURL, &form.CreatedAt, &form.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("form", "form not found")
		}

		return nil, fmt.Errorf("failed to get form: %w", err)
	}

	if err := json.Unmarshal(configJSON, &form.Config); err != nil {
		return nil, fmt.Errorf("failed to decode form config: %w", err)
	}

	if len(rejectionJSON) > 0 {
		if err := json.Unmarshal(rejectionJSON, &form.RejectionRules); err != nil {
			return nil, fmt.Errorf("failed to decode rejection rules: %w", err)
		}
	}

	return &form, nil
}

// Upsert creates or replaces the form for a slug and returns the stored row.
func (r *FormsRepository) Upsert(ctx context.Context, slug string, req *models.UpsertFormRequest) (*models.Form, error) {
	configJSON, err := json.Marshal(req.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form config: %w", err)
	}

	rejectionJSON, err := json.Marshal(req.RejectionRules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rejection rules: %w", err)
	}

	published := true
	if req.Published != nil {
		published = *req.Published
	}

	query := `
		INSERT INTO forms (slug, name, description, logo_url, favicon_url, published,
		                   config, rejection_rules, approved_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			logo_url = EXCLUDED.logo_url,
			favicon_url = EXCLUDED.favicon_url,
			published = EXCLUDED.published,
			config = EXCLUDED.config,
			rejection_rules = EXCLUDED.rejection_rules,
			approved_url = EXCLUDED.approved_url,
			updated_at = NOW()
		RETURNING id, slug, name, description, logo_url, favicon_url, published,
		          approved_url, created_at, updated_at
	`

	var form models.Form

	err = r.db.QueryRow(ctx, query,
		slug, req.Name, req.Description, req.LogoURL, req.FaviconURL, published,
		configJSON, rejectionJSON, req.ApprovedURL,
	).Scan(
		&form.ID, &form.Slug, &form.Name, &form.Description, &form.LogoURL,
		&form.FaviconURL, &form.Published, &form.ApprovedURL,
		&form.CreatedAt, &form.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert form: %w", err)
	}

	form.Config = req.Config
	form.RejectionRules = req.RejectionRules

	return &form, nil
}

// decodeConfig is shared by session scanning; kept here so every jsonb config
// column decodes through one path.
func decodeConfig(data []byte) (forms.FormConfig, error) {
	var cfg forms.FormConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return forms.FormConfig{}, fmt.Errorf("failed to decode form config: %w", err)
	}

	return cfg, nil
}
