package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/pkg/forms"
)

// IntakeSession is one in-progress or completed run of a form. The config is
// snapshotted at start so that admin edits to the form never change a running
// session's schema.
type IntakeSession struct {
	ID          uuid.UUID               `json:"sessionId"`
	FormSlug    string                  `json:"formSlug"`
	Status      datatypes.SessionStatus `json:"status"`
	CurrentStep int                     `json:"currentStep"`
	Answers     forms.Answers           `json:"answers"`
	FormConfig  forms.FormConfig        `json:"formConfig"`
	LatestUTM   json.RawMessage         `json:"latestUtm,omitempty"`
	Message     *string                 `json:"message,omitempty"`
	ProductURL  *string                 `json:"productUrl,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
	SubmittedAt *time.Time              `json:"submittedAt,omitempty"`
}

// StartSessionRequest starts a new session for a form slug.
type StartSessionRequest struct {
	FormSlug  string          `json:"formSlug" validate:"required,min=1,max=255,no_null_bytes"`
	LatestUTM json.RawMessage `json:"latestUtm,omitempty" validate:"omitempty,json_object"`
}

// StartSessionResponse is the payload the intake client boots from.
type StartSessionResponse struct {
	SessionID  uuid.UUID               `json:"sessionId"`
	Status     datatypes.SessionStatus `json:"status"`
	CreatedAt  time.Time               `json:"createdAt"`
	FormConfig forms.FormConfig        `json:"formConfig"`
	Form       *FormMetadata           `json:"form"`
}

// UpdateSessionRequest is the auto-save payload: the one-ahead step number and
// the full answer snapshot.
type UpdateSessionRequest struct {
	CurrentStep *int            `json:"currentStep,omitempty" validate:"omitempty,min=0,max=10000"`
	Answers     forms.Answers   `json:"answers,omitempty"`
	LatestUTM   json.RawMessage `json:"latestUtm,omitempty" validate:"omitempty,json_object"`
}

// UpdateSessionResponse acknowledges an auto-save.
type UpdateSessionResponse struct {
	ID          uuid.UUID               `json:"id"`
	Status      datatypes.SessionStatus `json:"status"`
	CurrentStep int                     `json:"currentStep"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// SubmitSessionRequest carries the final answers.
type SubmitSessionRequest struct {
	Answers forms.Answers `json:"answers"`
}

// SubmitSessionResponse is the terminal business result. REJECTED is a normal
// outcome with its own UI, not an error channel.
type SubmitSessionResponse struct {
	ID          uuid.UUID               `json:"id"`
	Status      datatypes.SessionStatus `json:"status"`
	SubmittedAt time.Time               `json:"submittedAt"`
	Message     string                  `json:"message,omitempty"`
	ProductURL  *string                 `json:"productUrl,omitempty"`
	LatestUTM   json.RawMessage         `json:"latestUtm,omitempty"`
}
