package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/internal/models"
)

// WebhooksRepository handles data access for webhooks.
type WebhooksRepository struct {
	db *pgxpool.Pool
}

// NewWebhooksRepository creates a new webhooks repository.
func NewWebhooksRepository(db *pgxpool.Pool) *WebhooksRepository {
	return &WebhooksRepository{db: db}
}

const webhookColumns = `
	id, url, signing_key, enabled, event_types, disabled_reason,
	disabled_at, created_at, updated_at
`

func scanWebhook(row pgx.Row) (*models.Webhook, error) {
	var (
		webhook    models.Webhook
		eventTypes []string
	)

	err := row.Scan(
		&webhook.ID, &webhook.URL, &webhook.SigningKey, &webhook.Enabled,
		&eventTypes, &webhook.DisabledReason, &webhook.DisabledAt,
		&webhook.CreatedAt, &webhook.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	types, err := datatypes.ParseEventTypes(eventTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode webhook event types: %w", err)
	}
	webhook.EventTypes = types

	return &webhook, nil
}

// Create inserts a new webhook.
func (r *WebhooksRepository) Create(ctx context.Context, url, signingKey string, enabled bool, eventTypes []datatypes.EventType) (*models.Webhook, error) {
	query := `
		INSERT INTO webhooks (url, signing_key, enabled, event_types)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + webhookColumns

	webhook, err := scanWebhook(r.db.QueryRow(ctx, query, url, signingKey, enabled, datatypes.EventTypeStrings(eventTypes)))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	return webhook, nil
}

// GetByID retrieves a webhook by its id.
func (r *WebhooksRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	webhook, err := scanWebhook(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("webhook", "webhook not found")
		}

		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}

	return webhook, nil
}

// buildWebhookFilterConditions builds WHERE clause conditions and arguments from filters.
func buildWebhookFilterConditions(filters *models.ListWebhooksFilters) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filters.Enabled != nil {
		conditions = append(conditions, fmt.Sprintf("enabled = $%d", len(args)+1))
		args = append(args, *filters.Enabled)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// List returns webhooks matching the filters, newest first.
func (r *WebhooksRepository) List(ctx context.Context, filters *models.ListWebhooksFilters) ([]models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks`

	whereClause, args := buildWebhookFilterConditions(filters)
	query += whereClause + " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := []models.Webhook{}
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, *webhook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhooks: %w", err)
	}

	return webhooks, nil
}

// Count returns the number of webhooks matching the filters.
func (r *WebhooksRepository) Count(ctx context.Context, filters *models.ListWebhooksFilters) (int64, error) {
	query := `SELECT COUNT(*) FROM webhooks`

	whereClause, args := buildWebhookFilterConditions(filters)
	query += whereClause

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count webhooks: %w", err)
	}

	return count, nil
}

// ListEnabledForEvent returns enabled webhooks subscribed to the event type.
// A webhook with no event types subscribes to everything.
func (r *WebhooksRepository) ListEnabledForEvent(ctx context.Context, eventType datatypes.EventType) ([]models.Webhook, error) {
	query := `
		SELECT ` + webhookColumns + `
		FROM webhooks
		WHERE enabled = true
		  AND (event_types IS NULL OR cardinality(event_types) = 0 OR $1 = ANY(event_types))
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, eventType.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for event: %w", err)
	}
	defer rows.Close()

	webhooks := []models.Webhook{}
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, *webhook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhooks: %w", err)
	}

	return webhooks, nil
}

// Update applies the non-nil fields of the request and returns the new row.
func (r *WebhooksRepository) Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.URL != nil {
		addSet("url", *req.URL)
	}
	if req.Enabled != nil {
		addSet("enabled", *req.Enabled)
	}
	if req.EventTypes != nil {
		addSet("event_types", datatypes.EventTypeStrings(req.EventTypes))
	}
	if req.DisabledReason != nil {
		addSet("disabled_reason", *req.DisabledReason)
	}
	if req.DisabledAt != nil {
		addSet("disabled_at", *req.DisabledAt)
	}

	query := `
		UPDATE webhooks
		SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1
		RETURNING ` + webhookColumns

	webhook, err := scanWebhook(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("webhook", "webhook not found")
		}

		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	return webhook, nil
}

// Disable turns a webhook off with a reason, typically after its endpoint is
// gone or keeps failing.
func (r *WebhooksRepository) Disable(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE webhooks
		SET enabled = false, disabled_reason = $2, disabled_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("failed to disable webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("webhook", "webhook not found")
	}

	return nil
}

// Delete removes a webhook.
func (r *WebhooksRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM webhooks WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("webhook", "webhook not found")
	}

	return nil
}
