package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careform/intake/internal/api/response"
	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/internal/service"
	"github.com/careform/intake/pkg/forms"
)

// mockSessionsService mocks SessionsService for handler tests.
type mockSessionsService struct {
	startFunc  func(ctx context.Context, req *models.StartSessionRequest) (*models.StartSessionResponse, error)
	getFunc    func(ctx context.Context, id uuid.UUID) (*models.IntakeSession, error)
	updateFunc func(ctx context.Context, id uuid.UUID, req *models.UpdateSessionRequest) (*models.UpdateSessionResponse, error)
	submitFunc func(ctx context.Context, id uuid.UUID, req *models.SubmitSessionRequest) (*models.SubmitSessionResponse, error)
}

func (m *mockSessionsService) StartSession(ctx context.Context, req *models.StartSessionRequest) (*models.StartSessionResponse, error) {
	return m.startFunc(ctx, req)
}

func (m *mockSessionsService) GetSession(ctx context.Context, id uuid.UUID) (*models.IntakeSession, error) {
	return m.getFunc(ctx, id)
}

func (m *mockSessionsService) UpdateSession(ctx context.Context, id uuid.UUID, req *models.UpdateSessionRequest) (*models.UpdateSessionResponse, error) {
	return m.updateFunc(ctx, id, req)
}

func (m *mockSessionsService) SubmitSession(ctx context.Context, id uuid.UUID, req *models.SubmitSessionRequest) (*models.SubmitSessionResponse, error) {
	return m.submitFunc(ctx, id, req)
}

func TestSessionsHandler_Start(t *testing.T) {
	t.Run("success returns 201 with session id and config", func(t *testing.T) {
		sessionID := uuid.Must(uuid.NewV7())
		mock := &mockSessionsService{
			startFunc: func(_ context.Context, req *models.StartSessionRequest) (*models.StartSessionResponse, error) {
				assert.Equal(t, "quit-smoking", req.FormSlug)

				return &models.StartSessionResponse{
					SessionID: sessionID,
					Status:    datatypes.SessionInProgress,
					CreatedAt: time.Now(),
				}, nil
			},
		}
		h := NewSessionsHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "http://test/v1/sessions",
			strings.NewReader(`{"formSlug":"quit-smoking"}`))
		rec := httptest.NewRecorder()

		h.Start(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp models.StartSessionResponse

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, sessionID, resp.SessionID)
		assert.Equal(t, datatypes.SessionInProgress, resp.Status)
	})

	t.Run("unknown form returns 404", func(t *testing.T) {
		mock := &mockSessionsService{
			startFunc: func(context.Context, *models.StartSessionRequest) (*models.StartSessionResponse, error) {
				return nil, apperrors.NewNotFoundError("form", "form not found")
			},
		}
		h := NewSessionsHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "http://test/v1/sessions",
			strings.NewReader(`{"formSlug":"missing"}`))
		rec := httptest.NewRecorder()

		h.Start(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing formSlug returns 400", func(t *testing.T) {
		h := NewSessionsHandler(&mockSessionsService{})

		req := httptest.NewRequest(http.MethodPost, "http://test/v1/sessions", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		h.Start(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionsHandler_Update(t *testing.T) {
	t.Run("auto-save returns 200", func(t *testing.T) {
		sessionID := uuid.Must(uuid.NewV7())
		mock := &mockSessionsService{
			updateFunc: func(_ context.Context, id uuid.UUID, req *models.UpdateSessionRequest) (*models.UpdateSessionResponse, error) {
				assert.Equal(t, sessionID, id)
				require.NotNil(t, req.CurrentStep)
				assert.Equal(t, 2, *req.CurrentStep)

				return &models.UpdateSessionResponse{
					ID:          id,
					Status:      datatypes.SessionInProgress,
					CurrentStep: 2,
					UpdatedAt:   time.Now(),
				}, nil
			},
		}
		h := NewSessionsHandler(mock)

		req := httptest.NewRequest(http.MethodPatch, "http://test/v1/sessions/"+sessionID.String(),
			strings.NewReader(`{"currentStep":2,"answers":{"smoker":"Yes"}}`))
		req.SetPathValue("id", sessionID.String())
		rec := httptest.NewRecorder()

		h.Update(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("terminal session returns 409", func(t *testing.T) {
		sessionID := uuid.Must(uuid.NewV7())
		mock := &mockSessionsService{
			updateFunc: func(context.Context, uuid.UUID, *models.UpdateSessionRequest) (*models.UpdateSessionResponse, error) {
				return nil, apperrors.NewConflictError("session is no longer in progress")
			},
		}
		h := NewSessionsHandler(mock)

		req := httptest.NewRequest(http.MethodPatch, "http://test/v1/sessions/"+sessionID.String(),
			strings.NewReader(`{"currentStep":1}`))
		req.SetPathValue("id", sessionID.String())
		rec := httptest.NewRecorder()

		h.Update(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		h := NewSessionsHandler(&mockSessionsService{})

		req := httptest.NewRequest(http.MethodPatch, "http://test/v1/sessions/not-a-uuid",
			strings.NewReader(`{}`))
		req.SetPathValue("id", "not-a-uuid")
		rec := httptest.NewRecorder()

		h.Update(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionsHandler_Submit(t *testing.T) {
	t.Run("validation failures return 422 with one detail per question", func(t *testing.T) {
		sessionID := uuid.Must(uuid.NewV7())
		mock := &mockSessionsService{
			submitFunc: func(context.Context, uuid.UUID, *models.SubmitSessionRequest) (*models.SubmitSessionResponse, error) {
				return nil, &service.SubmissionError{Fields: []*forms.FieldError{
					{QuestionID: "age", Message: "Idade inválida"},
					{QuestionID: "email", Message: "Informe um e-mail válido"},
				}}
			},
		}
		h := NewSessionsHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "http://test/v1/sessions/"+sessionID.String()+"/submit",
			strings.NewReader(`{"answers":{}}`))
		req.SetPathValue("id", sessionID.String())
		rec := httptest.NewRecorder()

		h.Submit(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var problem response.ProblemDetails

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Len(t, problem.Errors, 2)
		assert.Equal(t, "age", problem.Errors[0].Location)
		assert.Equal(t, "Idade inválida", problem.Errors[0].Message)
	})

	t.Run("rejected outcome returns 200, not an error status", func(t *testing.T) {
		sessionID := uuid.Must(uuid.NewV7())
		mock := &mockSessionsService{
			submitFunc: func(context.Context, uuid.UUID, *models.SubmitSessionRequest) (*models.SubmitSessionResponse, error) {
				return &models.SubmitSessionResponse{
					ID:          sessionID,
					Status:      datatypes.SessionRejected,
					SubmittedAt: time.Now(),
					Message:     "Este programa é indicado apenas para fumantes.",
				}, nil
			},
		}
		h := NewSessionsHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "http://test/v1/sessions/"+sessionID.String()+"/submit",
			strings.NewReader(`{"answers":{"smoker":"No"}}`))
		req.SetPathValue("id", sessionID.String())
		rec := httptest.NewRecorder()

		h.Submit(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp models.SubmitSessionResponse

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, datatypes.SessionRejected, resp.Status)
		assert.NotEmpty(t, resp.Message)
	})
}
