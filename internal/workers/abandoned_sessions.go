package workers

import (
	"context"
	"log/slog"
	"time"
)

// AbandonedSessionMarker defines the interface for sweeping idle sessions.
type AbandonedSessionMarker interface {
	MarkAbandoned(ctx context.Context, idleSince time.Time) (int64, error)
}

// AbandonedSessionsWorker is a background worker that periodically flips
// in-progress sessions with no auto-save activity past the idle cutoff to
// ABANDONED, so funnel metrics distinguish drop-offs from active leads.
type AbandonedSessionsWorker struct {
	repo     AbandonedSessionMarker
	interval time.Duration
	idleFor  time.Duration
}

// NewAbandonedSessionsWorker creates the sweeper.
func NewAbandonedSessionsWorker(repo AbandonedSessionMarker, interval, idleFor time.Duration) *AbandonedSessionsWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if idleFor <= 0 {
		idleFor = 24 * time.Hour
	}

	return &AbandonedSessionsWorker{
		repo:     repo,
		interval: interval,
		idleFor:  idleFor,
	}
}

// Start begins the worker loop. It runs until the context is cancelled.
func (w *AbandonedSessionsWorker) Start(ctx context.Context) {
	slog.Info("abandoned sessions worker started",
		"interval", w.interval,
		"idle_for", w.idleFor,
	)

	// Run immediately on startup
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("abandoned sessions worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce executes a single sweep.
func (w *AbandonedSessionsWorker) runOnce(ctx context.Context) {
	marked, err := w.repo.MarkAbandoned(ctx, time.Now().Add(-w.idleFor))
	if err != nil {
		slog.Error("abandoned sessions sweep failed", "error", err)
		return
	}

	if marked > 0 {
		slog.Info("abandoned sessions sweep completed", "marked", marked)
	} else {
		slog.Debug("abandoned sessions sweep completed, nothing idle")
	}
}
