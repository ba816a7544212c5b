package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/internal/models"
)

// WebhookDispatchInserter inserts webhook_dispatch jobs in batch (the River client).
type WebhookDispatchInserter interface {
	InsertMany(ctx context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error)
}

// webhookLister is the slice of the webhooks repository the provider needs.
type webhookLister interface {
	ListEnabledForEvent(ctx context.Context, eventType datatypes.EventType) ([]models.Webhook, error)
}

// WebhookProvider implements eventPublisher by enqueueing one River job per
// (event, webhook) pair.
type WebhookProvider struct {
	repo        webhookLister
	inserter    WebhookDispatchInserter
	maxAttempts int
	maxFanOut   int
}

// NewWebhookProvider creates a provider that lists subscribed webhooks and
// enqueues delivery jobs via InsertMany in batches of maxFanOut.
func NewWebhookProvider(inserter WebhookDispatchInserter, repo webhookLister, maxAttempts, maxFanOut int) *WebhookProvider {
	return &WebhookProvider{
		repo:        repo,
		inserter:    inserter,
		maxAttempts: maxAttempts,
		maxFanOut:   maxFanOut,
	}
}

// PublishEvent enqueues one delivery job per subscribed webhook. Errors are
// logged, not returned: the publish path must never fail a request.
func (p *WebhookProvider) PublishEvent(ctx context.Context, event Event) {
	webhooks, err := p.repo.ListEnabledForEvent(ctx, event.Type)
	if err != nil {
		slog.Error("failed to list webhooks for event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)

		return
	}

	if len(webhooks) == 0 {
		return
	}

	const uniqueByPeriodHours = 24

	opts := &river.InsertOpts{
		MaxAttempts: p.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: uniqueByPeriodHours * time.Hour,
		},
	}
	baseArgs := WebhookDispatchArgs{
		EventID:       event.ID,
		EventType:     event.Type.String(),
		Timestamp:     event.Timestamp,
		Data:          event.Data,
		ChangedFields: event.ChangedFields,
		WebhookID:     uuid.Nil, // set per webhook below
	}

	for start := 0; start < len(webhooks); start += p.maxFanOut {
		end := min(start+p.maxFanOut, len(webhooks))
		chunk := webhooks[start:end]

		params := make([]river.InsertManyParams, 0, len(chunk))
		for i := range chunk {
			args := baseArgs
			args.WebhookID = chunk[i].ID
			params = append(params, river.InsertManyParams{Args: args, InsertOpts: opts})
		}

		if _, err := p.inserter.InsertMany(ctx, params); err != nil {
			slog.Error("failed to enqueue webhook jobs",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err,
			)

			return
		}
	}
}

var _ eventPublisher = (*WebhookProvider)(nil)
