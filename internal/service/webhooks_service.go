package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"

	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/internal/models"
)

// WebhooksRepository defines the interface for webhooks data access.
type WebhooksRepository interface {
	Create(ctx context.Context, url, signingKey string, enabled bool, eventTypes []datatypes.EventType) (*models.Webhook, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	List(ctx context.Context, filters *models.ListWebhooksFilters) ([]models.Webhook, error)
	Count(ctx context.Context, filters *models.ListWebhooksFilters) (int64, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// WebhooksService handles business logic for webhook endpoints.
type WebhooksService struct {
	repo      WebhooksRepository
	publisher MessagePublisher
}

// NewWebhooksService creates a new webhooks service.
func NewWebhooksService(repo WebhooksRepository, publisher MessagePublisher) *WebhooksService {
	return &WebhooksService{repo: repo, publisher: publisher}
}

// CreateWebhook registers a webhook endpoint, generating a signing key when
// the request does not carry one.
func (s *WebhooksService) CreateWebhook(ctx context.Context, req *models.CreateWebhookRequest) (*models.Webhook, error) {
	if req.SigningKey == "" {
		key, err := generateSigningKey()
		if err != nil {
			return nil, err
		}
		req.SigningKey = key
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	webhook, err := s.repo.Create(ctx, req.URL, req.SigningKey, enabled, req.EventTypes)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishEvent(ctx, datatypes.WebhookCreated, webhook)

	return webhook, nil
}

// generateSigningKey produces a key in the Standard Webhooks format:
// "whsec_" + base64(32 random bytes).
func generateSigningKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}

	return "whsec_" + base64.StdEncoding.EncodeToString(key), nil
}

// GetWebhook retrieves a single webhook by id.
func (s *WebhooksService) GetWebhook(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	return s.repo.GetByID(ctx, id)
}

// ListWebhooks retrieves webhooks matching the optional filters.
func (s *WebhooksService) ListWebhooks(ctx context.Context, filters *models.ListWebhooksFilters) (*models.ListWebhooksResponse, error) {
	webhooks, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &models.ListWebhooksResponse{Data: webhooks, Total: total}, nil
}

// UpdateWebhook applies the non-nil fields of the request.
func (s *WebhooksService) UpdateWebhook(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
	webhook, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishEvent(ctx, datatypes.WebhookUpdated, webhook)

	return webhook, nil
}

// DeleteWebhook removes a webhook.
func (s *WebhooksService) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	webhook, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publisher.PublishEvent(ctx, datatypes.WebhookDeleted, webhook)

	return nil
}
