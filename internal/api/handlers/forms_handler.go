package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/careform/intake/internal/api/response"
	"github.com/careform/intake/internal/api/validation"
	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/models"
)

// FormsService defines the interface for forms business logic.
type FormsService interface {
	GetPublishedForm(ctx context.Context, slug string) (*models.Form, error)
	UpsertForm(ctx context.Context, slug string, req *models.UpsertFormRequest) (*models.Form, error)
}

// FormsHandler handles HTTP requests for form schemas.
type FormsHandler struct {
	service FormsService
}

// NewFormsHandler creates a new forms handler.
func NewFormsHandler(service FormsService) *FormsHandler {
	return &FormsHandler{service: service}
}

// Get handles GET /v1/forms/{slug}. Public route; serves the metadata shape
// without admin fields.
func (h *FormsHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		response.RespondBadRequest(w, "Form slug is required")
		return
	}

	form, err := h.service.GetPublishedForm(r.Context(), slug)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Form not found")
			return
		}
		slog.Error("Failed to get form", "method", r.Method, "path", r.URL.Path, "slug", slug, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, form.Metadata())
}

// Upsert handles PUT /v1/forms/{slug}. Admin route.
func (h *FormsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		response.RespondBadRequest(w, "Form slug is required")
		return
	}

	var req models.UpsertFormRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	form, err := h.service.UpsertForm(r.Context(), slug, &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondUnprocessableEntity(w, err.Error())
			return
		}
		slog.Error("Failed to upsert form", "method", r.Method, "path", r.URL.Path, "slug", slug, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, form)
}
