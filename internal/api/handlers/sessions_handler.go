// Package handlers implements the HTTP handlers for the intake API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/careform/intake/internal/api/response"
	"github.com/careform/intake/internal/api/validation"
	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/internal/service"
)

// SessionsService defines the interface for session business logic.
type SessionsService interface {
	StartSession(ctx context.Context, req *models.StartSessionRequest) (*models.StartSessionResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.IntakeSession, error)
	UpdateSession(ctx context.Context, id uuid.UUID, req *models.UpdateSessionRequest) (*models.UpdateSessionResponse, error)
	SubmitSession(ctx context.Context, id uuid.UUID, req *models.SubmitSessionRequest) (*models.SubmitSessionResponse, error)
}

// SessionsHandler handles HTTP requests for intake sessions.
type SessionsHandler struct {
	service SessionsService
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(service SessionsService) *SessionsHandler {
	return &SessionsHandler{service: service}
}

// Start handles POST /v1/sessions.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
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

	resp, err := h.service.StartSession(r.Context(), &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Form not found")
			return
		}
		slog.Error("Failed to start session", "method", r.Method, "path", r.URL.Path, "form_slug", req.FormSlug, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, resp)
}

// Get handles GET /v1/sessions/{id}: the resume path.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Session not found")
			return
		}
		slog.Error("Failed to get session", "method", r.Method, "path", r.URL.Path, "session_id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, session)
}

// Update handles PATCH /v1/sessions/{id}: the auto-save path.
func (h *SessionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req models.UpdateSessionRequest
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

	resp, err := h.service.UpdateSession(r.Context(), id, &req)
	if err != nil {
		h.respondSessionError(w, r, id, err, "Failed to update session")
		return
	}

	response.RespondJSON(w, http.StatusOK, resp)
}

// Submit handles POST /v1/sessions/{id}/submit.
func (h *SessionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req models.SubmitSessionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	resp, err := h.service.SubmitSession(r.Context(), id, &req)
	if err != nil {
		var submission *service.SubmissionError
		if errors.As(err, &submission) {
			details := make([]response.ErrorDetail, 0, len(submission.Fields))
			for _, fe := range submission.Fields {
				details = append(details, response.ErrorDetail{
					Location: fe.QuestionID,
					Message:  fe.Message,
				})
			}
			response.RespondFieldErrors(w, details)
			return
		}

		h.respondSessionError(w, r, id, err, "Failed to submit session")
		return
	}

	response.RespondJSON(w, http.StatusOK, resp)
}

// respondSessionError maps service errors shared by update and submit.
func (h *SessionsHandler) respondSessionError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error, logMsg string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		response.RespondNotFound(w, "Session not found")
	case errors.Is(err, apperrors.ErrConflict):
		response.RespondConflict(w, err.Error())
	default:
		slog.Error(logMsg, "method", r.Method, "path", r.URL.Path, "session_id", id, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
	}
}

// sessionID parses the {id} path value, responding on failure.
func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		response.RespondBadRequest(w, "Session ID is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return uuid.Nil, false
	}

	return id, true
}
