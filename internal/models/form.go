// Package models defines the server-side domain entities and request/response DTOs.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/careform/intake/pkg/forms"
)

// RejectionRule disqualifies a lead at submission time. Rules reuse the
// showWhen condition dialect: the first rule whose condition holds against the
// submitted answers rejects the session with its message.
type RejectionRule struct {
	When       *forms.Rule `json:"when"`
	Message    string      `json:"message"`
	ProductURL string      `json:"productUrl,omitempty"`
}

// Form is one published intake questionnaire, addressed externally by slug.
type Form struct {
	ID             uuid.UUID        `json:"id"`
	Slug           string           `json:"slug"`
	Name           string           `json:"name"`
	Description    *string          `json:"description,omitempty"`
	LogoURL        *string          `json:"logo_url,omitempty"`
	FaviconURL     *string          `json:"favicon_url,omitempty"`
	Published      bool             `json:"published"`
	Config         forms.FormConfig `json:"config"`
	RejectionRules []RejectionRule  `json:"rejection_rules,omitempty"`
	ApprovedURL    *string          `json:"approved_url,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// FormMetadata is the public shape served to the intake client: enough to
// render page chrome and run the form, without admin-only fields.
type FormMetadata struct {
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	LogoURL     *string          `json:"logo_url,omitempty"`
	FaviconURL  *string          `json:"favicon_url,omitempty"`
	Config      forms.FormConfig `json:"config"`
}

// Metadata projects the public shape.
func (f *Form) Metadata() *FormMetadata {
	return &FormMetadata{
		Slug:        f.Slug,
		Name:        f.Name,
		Description: f.Description,
		LogoURL:     f.LogoURL,
		FaviconURL:  f.FaviconURL,
		Config:      f.Config,
	}
}

// UpsertFormRequest creates or replaces a form schema (admin dashboard).
type UpsertFormRequest struct {
	Name           string           `json:"name" validate:"required,min=1,max=255,no_null_bytes"`
	Description    *string          `json:"description,omitempty" validate:"omitempty,no_null_bytes"`
	LogoURL        *string          `json:"logo_url,omitempty" validate:"omitempty,max=2048,no_null_bytes"`
	FaviconURL     *string          `json:"favicon_url,omitempty" validate:"omitempty,max=2048,no_null_bytes"`
	Published      *bool            `json:"published,omitempty"`
	Config         forms.FormConfig `json:"config"`
	RejectionRules []RejectionRule  `json:"rejection_rules,omitempty"`
	ApprovedURL    *string          `json:"approved_url,omitempty" validate:"omitempty,max=2048,no_null_bytes"`
}
