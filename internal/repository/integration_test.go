package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/internal/models"
	"github.com/careform/intake/pkg/database"
	"github.com/careform/intake/pkg/forms"
	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB starts a throwaway Postgres container and applies the schema.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("intake_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.NewPostgresPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return pool
}

func testConfig() forms.FormConfig {
	return forms.FormConfig{
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
		},
	}
}

func TestFormsRepository_Roundtrip(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewFormsRepository(pool)
	ctx := context.Background()

	req := &models.UpsertFormRequest{
		Name:   "Quit Smoking Intake",
		Config: testConfig(),
		RejectionRules: []models.RejectionRule{
			{When: forms.When("smoker", forms.OpEquals, "No"), Message: "not eligible"},
		},
	}

	created, err := repo.Upsert(ctx, "quit-smoking", req)
	require.NoError(t, err)
	assert.Equal(t, "quit-smoking", created.Slug)
	assert.True(t, created.Published)

	got, err := repo.GetBySlug(ctx, "quit-smoking")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, got.Config.Steps, 1)
	assert.Equal(t, "smoker", got.Config.Steps[0].Questions[0].ID)
	require.Len(t, got.RejectionRules, 1)
	assert.True(t, got.RejectionRules[0].When.Eval(forms.Answers{"smoker": forms.Text("No")}))

	// Upsert on the same slug replaces, not duplicates.
	req.Name = "Quit Smoking Intake v2"
	updated, err := repo.Upsert(ctx, "quit-smoking", req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Quit Smoking Intake v2", updated.Name)

	_, err = repo.GetBySlug(ctx, "missing")
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSessionsRepository_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSessionsRepository(pool)
	ctx := context.Background()

	session := &models.IntakeSession{
		ID:         uuid.Must(uuid.NewV7()),
		FormSlug:   "quit-smoking",
		Status:     datatypes.SessionInProgress,
		Answers:    forms.Answers{},
		FormConfig: testConfig(),
	}

	created, err := repo.Create(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionInProgress, created.Status)
	assert.Equal(t, 0, created.CurrentStep)

	step := 1
	saved, err := repo.SaveProgress(ctx, created.ID, &models.UpdateSessionRequest{
		CurrentStep: &step,
		Answers:     forms.Answers{"smoker": forms.Text("Yes")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.CurrentStep)
	assert.Equal(t, forms.Text("Yes"), saved.Answers["smoker"])

	// Step-only save keeps the stored answers.
	step = 0
	saved, err = repo.SaveProgress(ctx, created.ID, &models.UpdateSessionRequest{CurrentStep: &step})
	require.NoError(t, err)
	assert.Equal(t, forms.Text("Yes"), saved.Answers["smoker"])

	final, err := repo.Finalize(ctx, created.ID, datatypes.SessionApproved,
		[]byte(`{"smoker":"Yes"}`), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionApproved, final.Status)
	require.NotNil(t, final.SubmittedAt)

	// Finalizing twice loses the status-guard race.
	_, err = repo.Finalize(ctx, created.ID, datatypes.SessionRejected,
		[]byte(`{}`), nil, nil)
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestSessionsRepository_MarkAbandoned(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSessionsRepository(pool)
	ctx := context.Background()

	session := &models.IntakeSession{
		ID:         uuid.Must(uuid.NewV7()),
		FormSlug:   "quit-smoking",
		Status:     datatypes.SessionInProgress,
		Answers:    forms.Answers{},
		FormConfig: testConfig(),
	}
	_, err := repo.Create(ctx, session)
	require.NoError(t, err)

	// Cutoff in the future catches the fresh session.
	n, err := repo.MarkAbandoned(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionAbandoned, got.Status)
}

func TestWebhooksRepository_Roundtrip(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewWebhooksRepository(pool)
	ctx := context.Background()

	created, err := repo.Create(ctx, "https://example.com/hook", "whsec_test", true,
		[]datatypes.EventType{datatypes.SessionSubmitted, datatypes.LeadApproved})
	require.NoError(t, err)
	assert.True(t, created.Enabled)
	assert.Len(t, created.EventTypes, 2)

	matched, err := repo.ListEnabledForEvent(ctx, datatypes.SessionSubmitted)
	require.NoError(t, err)
	require.Len(t, matched, 1)

	unmatched, err := repo.ListEnabledForEvent(ctx, datatypes.SessionStarted)
	require.NoError(t, err)
	assert.Empty(t, unmatched)

	enabled := true
	listed, err := repo.List(ctx, &models.ListWebhooksFilters{Enabled: &enabled})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	count, err := repo.Count(ctx, &models.ListWebhooksFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.Disable(ctx, created.ID, "keeps failing"))

	disabled, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	require.NotNil(t, disabled.DisabledReason)
	assert.Equal(t, "keeps failing", *disabled.DisabledReason)

	matched, err = repo.ListEnabledForEvent(ctx, datatypes.SessionSubmitted)
	require.NoError(t, err)
	assert.Empty(t, matched)

	listed, err = repo.List(ctx, &models.ListWebhooksFilters{Enabled: &enabled})
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, repo.Delete(ctx, created.ID))
	err = repo.Delete(ctx, created.ID)
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
