package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careform/intake/internal/apperrors"
	"github.com/careform/intake/internal/datatypes"
	"github.com/careform/intake/internal/models"
)

// SessionsRepository handles data access for intake sessions.
type SessionsRepository struct {
	db *pgxpool.Pool
}

// NewSessionsRepository creates a new sessions repository.
func NewSessionsRepository(db *pgxpool.Pool) *SessionsRepository {
	return &SessionsRepository{db: db}
}

const sessionColumns = `
	id, form_slug, status, current_step, answers, form_config,
	latest_utm, message, product_url, created_at, updated_at, submitted_at
`

func scanSession(row pgx.Row) (*models.IntakeSession, error) {
	var (
		session     models.IntakeSession
		answersJSON []byte
		configJSON  []byte
	)

	err := row.Scan(
		&session.ID, &session.FormSlug, &session.Status, &session.CurrentStep,
		&answersJSON, &configJSON, &session.LatestUTM, &session.Message,
		&session.ProductURL, &session.CreatedAt, &session.UpdatedAt,
		&session.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &session.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode session answers: %w", err)
		}
	}

	cfg, err := decodeConfig(configJSON)
	if err != nil {
		return nil, err
	}
	session.FormConfig = cfg

	return &session, nil
}

// Create inserts a session with its form-config snapshot.
func (r *SessionsRepository) Create(ctx context.Context, session *models.IntakeSession) (*models.IntakeSession, error) {
	answersJSON, err := json.Marshal(session.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session answers: %w", err)
	}

	configJSON, err := json.Marshal(session.FormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form config snapshot: %w", err)
	}

	query := `
		INSERT INTO intake_sessions (id, form_slug, status, current_step, answers,
		                             form_config, latest_utm)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + sessionColumns

	row := r.db.QueryRow(ctx, query,
		session.ID, session.FormSlug, session.Status, session.CurrentStep,
		answersJSON, configJSON, session.LatestUTM,
	)

	created, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return created, nil
}

// GetByID retrieves a session by its id.
func (r *SessionsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IntakeSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM intake_sessions WHERE id = $1`

	session, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("session", "session not found")
		}

		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// SaveProgress persists an auto-save snapshot. Only non-nil parts of the
// request touch their columns, so a step-only save never clears answers.
func (r *SessionsRepository) SaveProgress(ctx context.Context, id uuid.UUID, req *models.UpdateSessionRequest) (*models.IntakeSession, error) {
	var answersJSON []byte
	if req.Answers != nil {
		var err error
		answersJSON, err = json.Marshal(req.Answers)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session answers: %w", err)
		}
	}

	query := `
		UPDATE intake_sessions
		SET current_step = COALESCE($2, current_step),
		    answers = COALESCE($3, answers),
		    latest_utm = COALESCE($4, latest_utm),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	session, err := scanSession(r.db.QueryRow(ctx, query, id, req.CurrentStep, answersJSON, req.LatestUTM))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("session", "session not found")
		}

		return nil, fmt.Errorf("failed to save session progress: %w", err)
	}

	return session, nil
}

// Finalize moves a session to a terminal status with the submitted answers and
// outcome. The status guard makes double submits lose the race cleanly.
func (r *SessionsRepository) Finalize(ctx context.Context, id uuid.UUID, status datatypes.SessionStatus, answers json.RawMessage, message, productURL *string) (*models.IntakeSession, error) {
	query := `
		UPDATE intake_sessions
		SET status = $2,
		    answers = $3,
		    message = $4,
		    product_url = $5,
		    submitted_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = $6
		RETURNING ` + sessionColumns

	session, err := scanSession(r.db.QueryRow(ctx, query, id, status, answers, message, productURL, datatypes.SessionInProgress))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflictError("session is not in progress")
		}

		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}

	return session, nil
}

// MarkAbandoned flips in-progress sessions idle since the cutoff to ABANDONED
// and returns how many rows changed.
func (r *SessionsRepository) MarkAbandoned(ctx context.Context, idleSince time.Time) (int64, error) {
	query := `
		UPDATE intake_sessions
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < $3
	`

	tag, err := r.db.Exec(ctx, query, datatypes.SessionAbandoned, datatypes.SessionInProgress, idleSince)
	if err != nil {
		return 0, fmt.Errorf("failed to mark abandoned sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}
