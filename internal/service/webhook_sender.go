package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"golang.org/x/time/rate"

	"github.com/careform/intake/internal/models"
)

// WebhookSender sends a single payload to an endpoint following Standard
// Webhooks: signed body, id/signature/timestamp headers, 410 handling.
type WebhookSender interface {
	Send(ctx context.Context, webhook *models.Webhook, payload *WebhookPayload) error
}

// webhookDisabler is the slice of the webhooks repository the sender needs.
type webhookDisabler interface {
	Disable(ctx context.Context, id uuid.UUID, reason string) error
}

// WebhookSenderImpl implements WebhookSender. A shared rate limiter caps the
// outbound request rate across all workers.
type WebhookSenderImpl struct {
	repo       webhookDisabler
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewWebhookSenderImpl creates a sender with a 15s HTTP timeout that does not
// follow redirects. requestsPerSecond <= 0 disables rate limiting.
func NewWebhookSenderImpl(repo webhookDisabler, requestsPerSecond float64) *WebhookSenderImpl {
	client := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1)
	}

	return &WebhookSenderImpl{
		repo:       repo,
		httpClient: client,
		limiter:    limiter,
	}
}

// Send signs and POSTs the payload to the webhook URL. On 410 Gone the
// webhook is disabled and the delivery reported as failed.
func (s *WebhookSenderImpl) Send(ctx context.Context, webhook *models.Webhook, payload *WebhookPayload) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	messageID := payload.ID.String()

	wh, err := standardwebhooks.NewWebhook(webhook.SigningKey)
	if err != nil {
		return fmt.Errorf("create webhook signer: %w", err)
	}

	timestamp := time.Now()
	signature, err := wh.Sign(messageID, timestamp, payloadJSON)
	if err != nil {
		return fmt.Errorf("sign webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payloadJSON))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(standardwebhooks.HeaderWebhookID, messageID)
	req.Header.Set(standardwebhooks.HeaderWebhookSignature, signature)
	req.Header.Set(standardwebhooks.HeaderWebhookTimestamp, strconv.FormatInt(timestamp.Unix(), 10))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close webhook response body", "webhook_id", webhook.ID, "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusGone {
		if disableErr := s.repo.Disable(ctx, webhook.ID, "Endpoint returned 410 Gone"); disableErr != nil {
			slog.Error("failed to disable webhook after 410 Gone",
				"webhook_id", webhook.ID,
				"url", webhook.URL,
				"error", disableErr,
			)
		} else {
			slog.Info("webhook disabled after 410 Gone",
				"webhook_id", webhook.ID,
				"url", webhook.URL,
			)
		}

		return fmt.Errorf("webhook returned 410 Gone (endpoint disabled): %s", webhook.URL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	return nil
}
