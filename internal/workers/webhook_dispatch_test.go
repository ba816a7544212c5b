package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/internal/service"
)

type mockDispatchRepo struct {
	webhook       *models.Webhook
	err           error
	disableReason string
	disabled      bool
}

func (m *mockDispatchRepo) GetByID(_ context.Context, _ uuid.UUID) (*models.Webhook, error) {
	return m.webhook, m.err
}

func (m *mockDispatchRepo) Disable(_ context.Context, _ uuid.UUID, reason string) error {
	m.disabled = true
	m.disableReason = reason

	return nil
}

type mockSender struct {
	err  error
	sent int
}

func (m *mockSender) Send(_ context.Context, _ *models.Webhook, _ *service.WebhookPayload) error {
	m.sent++

	return m.err
}

func TestWebhookDispatchWorker_Work(t *testing.T) {
	ctx := context.Background()
	args := service.WebhookDispatchArgs{
		EventID:   uuid.Must(uuid.NewV7()),
		EventType: "session.submitted",
		Timestamp: time.Now(),
		WebhookID: uuid.Must(uuid.NewV7()),
	}
	enabled := &models.Webhook{
		ID:         args.WebhookID,
		URL:        "https://example.com/hook",
		SigningKey: "whsec_test",
		Enabled:    true,
	}

	t.Run("returns nil when webhook not found", func(t *testing.T) {
		repo := &mockDispatchRepo{err: errors.New("not found")}
		worker := NewWebhookDispatchWorker(repo, &mockSender{})
		job := &river.Job[service.WebhookDispatchArgs]{JobRow: &rivertype.JobRow{}, Args: args}

		if err := worker.Work(ctx, job); err != nil {
			t.Errorf("Work() error = %v, want nil (no retry)", err)
		}
	})

	t.Run("skips disabled webhook", func(t *testing.T) {
		repo := &mockDispatchRepo{webhook: &models.Webhook{ID: args.WebhookID, Enabled: false}}
		sender := &mockSender{}
		worker := NewWebhookDispatchWorker(repo, sender)
		job := &river.Job[service.WebhookDispatchArgs]{JobRow: &rivertype.JobRow{}, Args: args}

		if err := worker.Work(ctx, job); err != nil {
			t.Errorf("Work() error = %v, want nil", err)
		}
		if sender.sent != 0 {
			t.Error("Send should not be called for a disabled webhook")
		}
	})

	t.Run("returns nil on send success", func(t *testing.T) {
		repo := &mockDispatchRepo{webhook: enabled}
		worker := NewWebhookDispatchWorker(repo, &mockSender{})
		job := &river.Job[service.WebhookDispatchArgs]{JobRow: &rivertype.JobRow{}, Args: args}

		if err := worker.Work(ctx, job); err != nil {
			t.Errorf("Work() error = %v, want nil", err)
		}
		if repo.disabled {
			t.Error("Disable should not be called on success")
		}
	})

	t.Run("retries without disabling before max attempts", func(t *testing.T) {
		repo := &mockDispatchRepo{webhook: enabled}
		worker := NewWebhookDispatchWorker(repo, &mockSender{err: errors.New("network error")})
		job := &river.Job[service.WebhookDispatchArgs]{
			JobRow: &rivertype.JobRow{Attempt: 1, MaxAttempts: 3},
			Args:   args,
		}

		if err := worker.Work(ctx, job); err == nil {
			t.Error("Work() error = nil, want error")
		}
		if repo.disabled {
			t.Error("Disable should not be called when attempt < max")
		}
	})

	t.Run("disables webhook on final failed attempt", func(t *testing.T) {
		repo := &mockDispatchRepo{webhook: enabled}
		worker := NewWebhookDispatchWorker(repo, &mockSender{err: errors.New("network error")})
		job := &river.Job[service.WebhookDispatchArgs]{
			JobRow: &rivertype.JobRow{Attempt: 3, MaxAttempts: 3},
			Args:   args,
		}

		if err := worker.Work(ctx, job); err == nil {
			t.Error("Work() error = nil, want error")
		}
		if !repo.disabled {
			t.Error("Disable should be called on the final attempt")
		}
		if repo.disableReason == "" {
			t.Error("disable reason should carry the send error")
		}
	})
}
