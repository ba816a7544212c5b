package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careform/intake/internal/datatypes"
)

// Webhook represents a webhook endpoint subscribed to intake events.
type Webhook struct {
	ID             uuid.UUID             `json:"id"`
	URL            string                `json:"url"`
	SigningKey     string                `json:"signing_key"`
	Enabled        bool                  `json:"enabled"`
	EventTypes     []datatypes.EventType `json:"event_types,omitempty"`
	DisabledReason *string               `json:"disabled_reason,omitempty"`
	DisabledAt     *time.Time            `json:"disabled_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// MarshalJSON converts []datatypes.EventType to a JSON string array.
func (w *Webhook) MarshalJSON() ([]byte, error) {
	type Alias Webhook

	aux := &struct {
		EventTypes []string `json:"event_types,omitempty"`
		*Alias
	}{
		Alias:      (*Alias)(w),
		EventTypes: datatypes.EventTypeStrings(w.EventTypes),
	}

	data, err := json.Marshal(aux)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook: %w", err)
	}

	return data, nil
}

// UnmarshalJSON converts a JSON string array to []datatypes.EventType.
func (w *Webhook) UnmarshalJSON(data []byte) error {
	type Alias Webhook

	aux := &struct {
		EventTypes []string `json:"event_types,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(w),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal webhook: %w", err)
	}

	types, err := datatypes.ParseEventTypes(aux.EventTypes)
	if err != nil {
		return err
	}

	w.EventTypes = types

	return nil
}

// CreateWebhookRequest represents the request to create a webhook.
type CreateWebhookRequest struct {
	URL        string                `json:"url" validate:"required,no_null_bytes,min=1,max=2048"`
	SigningKey string                `json:"signing_key,omitempty"` // Optional - auto-generated if not provided
	Enabled    *bool                 `json:"enabled,omitempty"`
	EventTypes []datatypes.EventType `json:"event_types,omitempty"`
}

// UnmarshalJSON converts a JSON string array to []datatypes.EventType.
func (r *CreateWebhookRequest) UnmarshalJSON(data []byte) error {
	type Alias CreateWebhookRequest

	aux := &struct {
		EventTypes []string `json:"event_types,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal create webhook request: %w", err)
	}

	types, err := datatypes.ParseEventTypes(aux.EventTypes)
	if err != nil {
		return err
	}

	r.EventTypes = types

	return nil
}

// UpdateWebhookRequest represents the request to update a webhook.
type UpdateWebhookRequest struct {
	URL            *string               `json:"url,omitempty" validate:"omitempty,no_null_bytes,min=1,max=2048"`
	Enabled        *bool                 `json:"enabled,omitempty"`
	EventTypes     []datatypes.EventType `json:"event_types,omitempty"`
	DisabledReason *string               `json:"disabled_reason,omitempty"`
	DisabledAt     *time.Time            `json:"disabled_at,omitempty"`
}

// ListWebhooksFilters represents query filters for listing webhooks.
type ListWebhooksFilters struct {
	Enabled *bool `form:"enabled"`
	Limit   int   `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset  int   `form:"offset" validate:"omitempty,min=0"`
}

// ListWebhooksResponse lists webhooks for the admin dashboard.
type ListWebhooksResponse struct {
	Data  []Webhook `json:"data"`
	Total int64     `json:"total"`
}
