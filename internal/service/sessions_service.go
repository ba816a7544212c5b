package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/pkg/forms"
)

// SessionsRepository defines the interface for session data access.
type SessionsRepository interface {
	Create(ctx context.Context, session *models.IntakeSession) (*models.IntakeSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.IntakeSession, error)
	SaveProgress(ctx context.Context, id uuid.UUID, req *models.UpdateSessionRequest) (*models.IntakeSession, error)
	Finalize(ctx context.Context, id uuid.UUID, status datatypes.SessionStatus, answers json.RawMessage, message, productURL *string) (*models.IntakeSession, error)
}

// formLookup is the slice of the forms service the sessions service needs.
type formLookup interface {
	GetPublishedForm(ctx context.Context, slug string) (*models.Form, error)
}

// SubmissionError carries per-question validation failures from a submit.
type SubmissionError struct {
	Fields []*forms.FieldError
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed validation on %d question(s)", len(e.Fields))
}

// SessionsService handles the intake session lifecycle: start, auto-save,
// submit. The form config is snapshotted into the session at start, so
// validation at submit always runs against the schema the lead answered.
type SessionsService struct {
	repo      SessionsRepository
	forms     formLookup
	publisher MessagePublisher
}

// NewSessionsService creates a new sessions service.
func NewSessionsService(repo SessionsRepository, forms formLookup, publisher MessagePublisher) *SessionsService {
	return &SessionsService{repo: repo, forms: forms, publisher: publisher}
}

// StartSession creates a session for a published form. The returned config is
// the snapshot the client should render from.
func (s *SessionsService) StartSession(ctx context.Context, req *models.StartSessionRequest) (*models.StartSessionResponse, error) {
	form, err := s.forms.GetPublishedForm(ctx, req.FormSlug)
	if err != nil {
		return nil, err
	}

	session := &models.IntakeSession{
		ID:          uuid.Must(uuid.NewV7()),
		FormSlug:    form.Slug,
		Status:      datatypes.SessionInProgress,
		CurrentStep: 0,
		Answers:     forms.Answers{},
		FormConfig:  form.Config,
		LatestUTM:   req.LatestUTM,
	}

	created, err := s.repo.Create(ctx, session)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishEvent(ctx, datatypes.SessionStarted, created)

	return &models.StartSessionResponse{
		SessionID:  created.ID,
		Status:     created.Status,
		CreatedAt:  created.CreatedAt,
		FormConfig: created.FormConfig,
		Form:       form.Metadata(),
	}, nil
}

// GetSession retrieves a session by id, config snapshot included. This is the
// resume path: a returning client rebuilds its whole state from this.
func (s *SessionsService) GetSession(ctx context.Context, id uuid.UUID) (*models.IntakeSession, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateSession persists an auto-save snapshot. Terminal sessions reject
// further writes.
func (s *SessionsService) UpdateSession(ctx context.Context, id uuid.UUID, req *models.UpdateSessionRequest) (*models.UpdateSessionResponse, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status.IsTerminal() {
		return nil, apperrors.NewConflictError("session is no longer in progress")
	}

	if req.CurrentStep != nil {
		step := clampStep(*req.CurrentStep, len(session.FormConfig.Steps))
		req.CurrentStep = &step
	}

	updated, err := s.repo.SaveProgress(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishEventWithChangedFields(ctx, datatypes.SessionUpdated, updated, changedFields(req))

	return &models.UpdateSessionResponse{
		ID:          updated.ID,
		Status:      updated.Status,
		CurrentStep: updated.CurrentStep,
		UpdatedAt:   updated.UpdatedAt,
	}, nil
}

// SubmitSession validates the final answers against the visible questions of
// the snapshot schema, then routes the lead through the form's rejection
// rules. REJECTED is a normal terminal outcome, not an error.
func (s *SessionsService) SubmitSession(ctx context.Context, id uuid.UUID, req *models.SubmitSessionRequest) (*models.SubmitSessionResponse, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status.IsTerminal() {
		return nil, apperrors.NewConflictError("session is no longer in progress")
	}

	answers := session.Answers
	if req.Answers != nil {
		answers = req.Answers
	}
	if answers == nil {
		answers = forms.Answers{}
	}

	if fieldErrs := validateVisible(&session.FormConfig, answers); len(fieldErrs) > 0 {
		return nil, &SubmissionError{Fields: fieldErrs}
	}

	// Rejection rules and the approved URL come from the current form, not
	// the snapshot: routing decisions follow today's policy even for old
	// sessions.
	status := datatypes.SessionApproved
	var message, productURL *string

	form, err := s.forms.GetPublishedForm(ctx, session.FormSlug)
	if err != nil {
		// The form may have been unpublished mid-session. The lead still
		// finishes; they just skip outcome routing.
		slog.Warn("form unavailable at submit, approving without routing",
			"session_id", session.ID,
			"form_slug", session.FormSlug,
			"error", err,
		)
	} else {
		if rule := matchRejection(form.RejectionRules, answers); rule != nil {
			status = datatypes.SessionRejected
			message = &rule.Message
			if rule.ProductURL != "" {
				productURL = &rule.ProductURL
			}
		} else {
			productURL = form.ApprovedURL
		}
	}

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submitted answers: %w", err)
	}

	final, err := s.repo.Finalize(ctx, id, status, answersJSON, message, productURL)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishEvent(ctx, datatypes.SessionSubmitted, final)
	if status == datatypes.SessionApproved {
		s.publisher.PublishEvent(ctx, datatypes.LeadApproved, final)
	} else {
		s.publisher.PublishEvent(ctx, datatypes.LeadRejected, final)
	}

	resp := &models.SubmitSessionResponse{
		ID:          final.ID,
		Status:      final.Status,
		SubmittedAt: *final.SubmittedAt,
		ProductURL:  final.ProductURL,
		LatestUTM:   final.LatestUTM,
	}
	if final.Message != nil {
		resp.Message = *final.Message
	}

	return resp, nil
}

// validateVisible runs the field rules of every visible question. Hidden
// questions contribute nothing, required or not.
func validateVisible(cfg *forms.FormConfig, answers forms.Answers) []*forms.FieldError {
	var questions []forms.Question
	for i := range cfg.Steps {
		if !cfg.IsStepVisible(i, answers) {
			continue
		}
		questions = append(questions, cfg.VisibleQuestions(i, answers)...)
	}

	return forms.CheckAll(forms.FormRules(questions), answers)
}

// matchRejection returns the first rule whose condition holds.
func matchRejection(rules []models.RejectionRule, answers forms.Answers) *models.RejectionRule {
	for i := range rules {
		if rules[i].When.Eval(answers) {
			return &rules[i]
		}
	}

	return nil
}

func changedFields(req *models.UpdateSessionRequest) []string {
	var fields []string
	if req.CurrentStep != nil {
		fields = append(fields, "current_step")
	}
	if req.Answers != nil {
		fields = append(fields, "answers")
	}
	if req.LatestUTM != nil {
		fields = append(fields, "latest_utm")
	}

	return fields
}

func clampStep(step, steps int) int {
	if steps == 0 {
		return 0
	}
	if step < 0 {
		return 0
	}
	if step > steps-1 {
		return steps - 1
	}

	return step
}
