package forms

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultAutoSaveDelay is the debounce window between the last answer change
// and the background save.
const DefaultAutoSaveDelay = 2 * time.Second

// SaveFunc pushes session progress to the backend. currentStep is the
// one-ahead step number (see AutoSaver), answers a snapshot of the answer map.
type SaveFunc func(ctx context.Context, currentStep int, answers Answers) error

// AutoSaver schedules a debounced background save whenever the session's
// answers change. Each change cancels the pending timer and starts a new one,
// so at most one timer is pending at a time; a save already dispatched is
// never aborted, and an older save completing after a newer one is tolerated
// (last write wins at the backend).
//
// Save errors are logged, never surfaced: the next debounce cycle retries
// implicitly and the user's typing is never interrupted.
type AutoSaver struct {
	mu sync.Mutex

	session *SessionState
	save    SaveFunc
	delay   time.Duration

	timer       *time.Timer
	lastPushed  Answers
	saving      bool
	lastSavedAt time.Time
}

// NewAutoSaver creates a coordinator for the given session. delay <= 0 falls
// back to DefaultAutoSaveDelay.
func NewAutoSaver(session *SessionState, save SaveFunc, delay time.Duration) *AutoSaver {
	if delay <= 0 {
		delay = DefaultAutoSaveDelay
	}

	return &AutoSaver{
		session: session,
		save:    save,
		delay:   delay,
	}
}

// Bump notifies the coordinator that session state may have changed. When the
// answers differ by deep comparison from the last pushed snapshot, the
// debounce timer is (re)armed; otherwise the call is a no-op.
func (a *AutoSaver) Bump() {
	a.mu.Lock()
	defer a.mu.Unlock()

	answers := a.session.Answers()
	if answers.Equal(a.lastPushed) {
		return
	}

	if a.timer != nil {
		a.timer.Stop()
	}

	a.timer = time.AfterFunc(a.delay, func() {
		if err := a.flush(context.Background()); err != nil {
			slog.Error("auto-save failed", "session_id", a.session.SessionID(), "error", err)
		}
	})
}

// SaveNow cancels any pending timer and saves immediately. Used before a step
// submit and before final submission; it cannot recall a request already in
// flight.
func (a *AutoSaver) SaveNow(ctx context.Context) error {
	a.mu.Lock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}

	a.mu.Unlock()

	return a.flush(ctx)
}

// Saving reports whether a save request is currently in flight.
func (a *AutoSaver) Saving() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.saving
}

// LastSavedAt returns the completion time of the last successful save, mirrored
// for display. Zero when nothing was saved yet.
func (a *AutoSaver) LastSavedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastSavedAt
}

// Stop cancels any pending timer. In-flight requests are not aborted.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// flush performs one save. The persisted step is currentStep+1 clamped to the
// last step index: the step the user has completed, not the one being viewed.
func (a *AutoSaver) flush(ctx context.Context) error {
	answers := a.session.Answers()
	step := a.session.CurrentStep() + 1

	if last := len(a.session.Config().Steps) - 1; step > last {
		step = last
	}

	a.mu.Lock()
	a.saving = true
	a.mu.Unlock()

	err := a.save(ctx, step, answers)

	a.mu.Lock()
	a.saving = false

	if err == nil {
		a.lastPushed = answers
		a.lastSavedAt = time.Now()
	}

	a.mu.Unlock()

	return err
}
