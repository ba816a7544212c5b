// Package workers provides River job workers.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/internal/service"
)

// WebhookDispatchWorker delivers one event to one webhook endpoint.
type WebhookDispatchWorker struct {
	river.WorkerDefaults[service.WebhookDispatchArgs]

	repo   webhookDispatchRepo
	sender service.WebhookSender
}

// webhookDispatchRepo is the minimal repo interface needed by the worker.
type webhookDispatchRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	Disable(ctx context.Context, id uuid.UUID, reason string) error
}

// NewWebhookDispatchWorker creates a worker that uses the given repo and sender.
func NewWebhookDispatchWorker(repo webhookDispatchRepo, sender service.WebhookSender) *WebhookDispatchWorker {
	return &WebhookDispatchWorker{repo: repo, sender: sender}
}

// WebhookDeliveryTimeout is the max duration for a single delivery (covers the
// HTTP client timeout plus rate-limiter wait).
const WebhookDeliveryTimeout = 25 * time.Second

// Timeout limits how long a single delivery can run.
func (w *WebhookDispatchWorker) Timeout(*river.Job[service.WebhookDispatchArgs]) time.Duration {
	return WebhookDeliveryTimeout
}

// Work loads the webhook, builds the payload, and sends once. River handles
// retries; the worker disables the webhook after the final failed attempt.
func (w *WebhookDispatchWorker) Work(ctx context.Context, job *river.Job[service.WebhookDispatchArgs]) error {
	args := job.Args

	webhook, err := w.repo.GetByID(ctx, args.WebhookID)
	if err != nil {
		slog.Error("webhook dispatch: get webhook failed",
			"event_id", args.EventID,
			"webhook_id", args.WebhookID,
			"error", err,
		)

		return nil // no retry if webhook not found
	}

	if !webhook.Enabled {
		slog.Debug("webhook dispatch: webhook disabled, skipping",
			"event_id", args.EventID,
			"webhook_id", args.WebhookID,
		)

		return nil
	}

	payload := &service.WebhookPayload{
		ID:            args.EventID,
		Type:          args.EventType,
		Timestamp:     args.Timestamp,
		Data:          args.Data,
		ChangedFields: args.ChangedFields,
	}

	err = w.sender.Send(ctx, webhook, payload)
	if err == nil {
		return nil
	}

	if job.Attempt >= job.MaxAttempts {
		if disableErr := w.repo.Disable(ctx, webhook.ID, err.Error()); disableErr != nil {
			slog.Error("webhook dispatch: failed to disable webhook after max attempts",
				"webhook_id", webhook.ID,
				"event_id", args.EventID,
				"error", disableErr,
			)
		}

		slog.Error("webhook disabled after max delivery attempts",
			"webhook_id", webhook.ID,
			"event_id", args.EventID,
			"error", err,
		)

		return fmt.Errorf("webhook send (final attempt): %w", err)
	}

	slog.Warn("webhook delivery failed, will retry",
		"event_id", args.EventID,
		"webhook_id", webhook.ID,
		"url", webhook.URL,
		"event_type", args.EventType,
		"error", err,
	)

	return fmt.Errorf("webhook send: %w", err)
}
