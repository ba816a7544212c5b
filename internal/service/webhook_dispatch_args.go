package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

const webhookDispatchKind = "webhook_dispatch"

// WebhookDispatchArgs is the job payload for one (event, webhook) delivery.
// Only event_id and webhook_id participate in River uniqueness so the hash
// stays cheap even when Data carries a full session.
type WebhookDispatchArgs struct {
	EventID       uuid.UUID `json:"event_id"                 river:"unique"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	Data          any       `json:"data"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
	WebhookID     uuid.UUID `json:"webhook_id"               river:"unique"`
}

// Kind returns the River job kind.
func (WebhookDispatchArgs) Kind() string { return webhookDispatchKind }

var _ river.JobArgs = WebhookDispatchArgs{}

// WebhookPayload is the body POSTed to a webhook endpoint, shared by every
// event type. Data carries the session, form or webhook the event concerns.
type WebhookPayload struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Data          any       `json:"data"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
}
