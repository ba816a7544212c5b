package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/pkg/forms"
)

type mockSessionsRepo struct {
	sessions map[uuid.UUID]*models.IntakeSession
}

func newMockSessionsRepo() *mockSessionsRepo {
	return &mockSessionsRepo{sessions: make(map[uuid.UUID]*models.IntakeSession)}
}

func (m *mockSessionsRepo) Create(_ context.Context, session *models.IntakeSession) (*models.IntakeSession, error) {
	stored := *session
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.sessions[stored.ID] = &stored

	return &stored, nil
}

func (m *mockSessionsRepo) GetByID(_ context.Context, id uuid.UUID) (*models.IntakeSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("session", "session not found")
	}

	copied := *session

	return &copied, nil
}

func (m *mockSessionsRepo) SaveProgress(_ context.Context, id uuid.UUID, req *models.UpdateSessionRequest) (*models.IntakeSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("session", "session not found")
	}

	if req.CurrentStep != nil {
		session.CurrentStep = *req.CurrentStep
	}
	if req.Answers != nil {
		session.Answers = req.Answers
	}
	if req.LatestUTM != nil {
		session.LatestUTM = req.LatestUTM
	}
	session.UpdatedAt = time.Now()

	copied := *session

	return &copied, nil
}

func (m *mockSessionsRepo) Finalize(_ context.Context, id uuid.UUID, status datatypes.SessionStatus, answers json.RawMessage, message, productURL *string) (*models.IntakeSession, error) {
	session, ok := m.sessions[id]
	if !ok || session.Status != datatypes.SessionInProgress {
		return nil, apperrors.NewConflictError("session is not in progress")
	}

	if err := json.Unmarshal(answers, &session.Answers); err != nil {
		return nil, err
	}

	now := time.Now()
	session.Status = status
	session.Message = message
	session.ProductURL = productURL
	session.SubmittedAt = &now
	session.UpdatedAt = now

	copied := *session

	return &copied, nil
}

type mockFormLookup struct {
	form *models.Form
	err  error
}

func (m *mockFormLookup) GetPublishedForm(_ context.Context, _ string) (*models.Form, error) {
	if m.err != nil {
		return nil, m.err
	}

	return m.form, nil
}

type recordingPublisher struct {
	events []datatypes.EventType
}

func (p *recordingPublisher) PublishEvent(_ context.Context, eventType datatypes.EventType, _ any) {
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) PublishEventWithChangedFields(_ context.Context, eventType datatypes.EventType, _ any, _ []string) {
	p.events = append(p.events, eventType)
}

func yes(questionID, value string) *forms.Rule {
	return forms.When(questionID, forms.OpEquals, value)
}

// smokerForm is a two-step schema: a required smoker question and a follow-up
// step shown only to smokers.
func smokerForm() *models.Form {
	approvedURL := "https://store.example.com/checkout"

	return &models.Form{
		Slug:      "quit-smoking",
		Name:      "Quit Smoking Intake",
		Published: true,
		Config: forms.FormConfig{
			Steps: []forms.FormStep{
				{
					ID: "habits",
					Questions: []forms.Question{
						{
							ID:       "smoker",
							Type:     forms.TypeRadio,
							Required: true,
							Options:  []forms.Option{{Value: "Yes"}, {Value: "No"}},
						},
					},
				},
				{
					ID:       "details",
					ShowWhen: yes("smoker", "Yes"),
					Questions: []forms.Question{
						{
							ID:       "cigarettes_per_day",
							Type:     forms.TypeNumber,
							Required: true,
						},
					},
				},
			},
		},
		RejectionRules: []models.RejectionRule{
			{
				When:       yes("smoker", "No"),
				Message:    "Este programa é indicado apenas para fumantes.",
				ProductURL: "https://example.com/other-programs",
			},
		},
		ApprovedURL: &approvedURL,
	}
}

func startSession(t *testing.T, svc *SessionsService) uuid.UUID {
	t.Helper()

	resp, err := svc.StartSession(context.Background(), &models.StartSessionRequest{FormSlug: "quit-smoking"})
	if err != nil {
		t.Fatalf("StartSession returned error: %v", err)
	}

	return resp.SessionID
}

func TestSessionsService_StartSession(t *testing.T) {
	repo := newMockSessionsRepo()
	publisher := &recordingPublisher{}
	svc := NewSessionsService(repo, &mockFormLookup{form: smokerForm()}, publisher)

	resp, err := svc.StartSession(context.Background(), &models.StartSessionRequest{FormSlug: "quit-smoking"})
	if err != nil {
		t.Fatalf("StartSession returned error: %v", err)
	}

	if resp.Status != datatypes.SessionInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", resp.Status)
	}
	if len(resp.FormConfig.Steps) != 2 {
		t.Errorf("expected config snapshot with 2 steps, got %d", len(resp.FormConfig.Steps))
	}
	if resp.Form == nil || resp.Form.Slug != "quit-smoking" {
		t.Errorf("expected form metadata in response, got %+v", resp.Form)
	}
	if len(publisher.events) != 1 || publisher.events[0] != datatypes.SessionStarted {
		t.Errorf("expected session.started event, got %v", publisher.events)
	}
}

func TestSessionsService_StartSession_FormNotFound(t *testing.T) {
	svc := NewSessionsService(newMockSessionsRepo(), &mockFormLookup{err: apperrors.NewNotFoundError("form", "form not found")}, &recordingPublisher{})

	_, err := svc.StartSession(context.Background(), &models.StartSessionRequest{FormSlug: "missing"})

	var notFound *apperrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSessionsService_UpdateSession_ClampsStep(t *testing.T) {
	repo := newMockSessionsRepo()
	svc := NewSessionsService(repo, &mockFormLookup{form: smokerForm()}, &recordingPublisher{})
	id := startSession(t, svc)

	step := 99
	resp, err := svc.UpdateSession(context.Background(), id, &models.UpdateSessionRequest{
		CurrentStep: &step,
		Answers:     forms.Answers{"smoker": forms.Text("Yes")},
	})
	if err != nil {
		t.Fatalf("UpdateSession returned error: %v", err)
	}

	if resp.CurrentStep != 1 {
		t.Errorf("expected step clamped to 1, got %d", resp.CurrentStep)
	}
}

func TestSessionsService_UpdateSession_TerminalConflict(t *testing.T) {
	repo := newMockSessionsRepo()
	svc := NewSessionsService(repo, &mockFormLookup{form: smokerForm()}, &recordingPublisher{})
	id := startSession(t, svc)
	repo.sessions[id].Status = datatypes.SessionApproved

	_, err := svc.UpdateSession(context.Background(), id, &models.UpdateSessionRequest{})

	var conflict *apperrors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestSessionsService_SubmitSession_ValidationFailure(t *testing.T) {
	repo := newMockSessionsRepo()
	svc := NewSessionsService(repo, &mockFormLookup{form: smokerForm()}, &recordingPublisher{})
	id := startSession(t, svc)

	// Smoker answered yes but the required follow-up is missing.
	_, err := svc.SubmitSession(context.Background(), id, &models.SubmitSessionRequest{
		Answers: forms.Answers{"smoker": forms.Text("Yes")},
	})

	var submission *SubmissionError
	if !errors.As(err, &submission) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if len(submission.Fields) != 1 || submission.Fields[0].QuestionID != "cigarettes_per_day" {
		t.Errorf("expected one error on cigarettes_per_day, got %+v", submission.Fields)
	}
}

func TestSessionsService_SubmitSession_HiddenRequiredSkipped(t *testing.T) {
	repo := newMockSessionsRepo()
	publisher := &recordingPublisher{}
	svc := NewSessionsService(repo, &mockFormLookup{form: smokerForm()}, publisher)
	id := startSession(t, svc)

	// Non-smoker never sees cigarettes_per_day, so its required flag must
	// not block submission; the rejection rule then routes them out.
	resp, err := svc.SubmitSession(context.Background(), id, &models.SubmitSessionRequest{
		Answers: forms.Answers{"smoker": forms.Text("No")},
	})
	if err != nil {
		t.Fatalf("SubmitSession returned error: %v", err)
	}

	if resp.Status != datatypes.SessionRejected {
		t.Errorf("expected REJECTED, got %s", resp.Status)
	}
	if resp.Message != "Este programa é indicado apenas para fumantes." {
		t.Errorf("unexpected rejection message %q", resp.Message)
	}
	if resp.ProductURL == nil || *resp.ProductURL != "https://example.com/other-programs" {
		t.Errorf("expected rejection product URL, got %v", resp.ProductURL)
	}
}

func TestSessionsService_SubmitSession_QuestionLevelHiddenRequiredSkipped(t *testing.T) {
	form := smokerForm()

	// Same follow-up question, gated on the question itself instead of the
	// step. Both gates must keep the required flag out of submit validation.
	form.Config.Steps[1].ShowWhen = nil
	form.Config.Steps[1].Questions[0].ShowWhen = yes("smoker", "Yes")

	repo := newMockSessionsRepo()
	svc := NewSessionsService(repo, &mockFormLookup{form: form}, &recordingPublisher{})
	id := startSession(t, svc)

	resp, err := svc.SubmitSession(context.Background(), id, &models.SubmitSessionRequest{
		Answers: forms.Answers{"smoker": forms.Text("No")},
	})
	if err != nil {
		t.Fatalf("SubmitSession returned error: %v", err)
	}

	if resp.Status != datatypes.SessionRejected {
		t.Errorf("expected REJECTED, got %s", resp.Status)
	}
}

func TestSessionsService_SubmitSession_Approved(t *testing.T) {
	repo := newMockSessionsRepo()
	publisher := &recordingPublisher{}
	svc := NewSessionsService(repo, &mockFormLookup{form: smokerForm()}, publisher)
	id := startSession(t, svc)

	resp, err := svc.SubmitSession(context.Background(), id, &models.SubmitSessionRequest{
		Answers: forms.Answers{
			"smoker":             forms.Text("Yes"),
			"cigarettes_per_day": forms.Text("20"),
		},
	})
	if err != nil {
		t.Fatalf("SubmitSession returned error: %v", err)
	}

	if resp.Status != datatypes.SessionApproved {
		t.Errorf("expected APPROVED, got %s", resp.Status)
	}
	if resp.ProductURL == nil || *resp.ProductURL != "https://store.example.com/checkout" {
		t.Errorf("expected approved URL, got %v", resp.ProductURL)
	}
	if resp.SubmittedAt.IsZero() {
		t.Error("expected submittedAt to be set")
	}

	want := []datatypes.EventType{datatypes.SessionStarted, datatypes.SessionSubmitted, datatypes.LeadApproved}
	if len(publisher.events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, publisher.events)
	}
	for i, et := range want {
		if publisher.events[i] != et {
			t.Errorf("event %d: expected %s, got %s", i, et, publisher.events[i])
		}
	}
}

func TestSessionsService_SubmitSession_DoubleSubmit(t *testing.T) {
	repo := newMockSessionsRepo()
	svc := NewSessionsService(repo, &mockFormLookup{form: smokerForm()}, &recordingPublisher{})
	id := startSession(t, svc)

	answers := forms.Answers{"smoker": forms.Text("No")}
	if _, err := svc.SubmitSession(context.Background(), id, &models.SubmitSessionRequest{Answers: answers}); err != nil {
		t.Fatalf("first submit returned error: %v", err)
	}

	_, err := svc.SubmitSession(context.Background(), id, &models.SubmitSessionRequest{Answers: answers})

	var conflict *apperrors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError on double submit, got %v", err)
	}
}
