package intake

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/careform/intake/pkg/forms"
)

// FormMetadata is the public form shape: page chrome plus the schema the
// client renders.
type FormMetadata struct {
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	LogoURL     *string          `json:"logo_url,omitempty"`
	FaviconURL  *string          `json:"favicon_url,omitempty"`
	Config      forms.FormConfig `json:"config"`
}

// StartSessionRequest starts a session for a form slug.
type StartSessionRequest struct {
	FormSlug  string          `json:"formSlug"`
	LatestUTM json.RawMessage `json:"latestUtm,omitempty"`
}

// StartSessionResponse is what a client boots a new session from.
type StartSessionResponse struct {
	SessionID  uuid.UUID        `json:"sessionId"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	FormConfig forms.FormConfig `json:"formConfig"`
	Form       *FormMetadata    `json:"form"`
}

// Session is a stored session snapshot, used on resume.
type Session struct {
	ID          uuid.UUID        `json:"sessionId"`
	FormSlug    string           `json:"formSlug"`
	Status      string           `json:"status"`
	CurrentStep int              `json:"currentStep"`
	Answers     forms.Answers    `json:"answers"`
	FormConfig  forms.FormConfig `json:"formConfig"`
	Message     *string          `json:"message,omitempty"`
	ProductURL  *string          `json:"productUrl,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	SubmittedAt *time.Time       `json:"submittedAt,omitempty"`
}

// UpdateSessionRequest is the auto-save payload.
type UpdateSessionRequest struct {
	CurrentStep *int            `json:"currentStep,omitempty"`
	Answers     forms.Answers   `json:"answers,omitempty"`
	LatestUTM   json.RawMessage `json:"latestUtm,omitempty"`
}

// UpdateSessionResponse acknowledges an auto-save.
type UpdateSessionResponse struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	CurrentStep int       `json:"currentStep"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SubmitSessionRequest carries the final answers.
type SubmitSessionRequest struct {
	Answers forms.Answers `json:"answers"`
}

// SubmitSessionResponse is the terminal business result.
type SubmitSessionResponse struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
	Message     string    `json:"message,omitempty"`
	ProductURL  *string   `json:"productUrl,omitempty"`
}

// Session status strings returned by the API.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusApproved   = "APPROVED"
	StatusRejected   = "REJECTED"
	StatusAbandoned  = "ABANDONED"
)
