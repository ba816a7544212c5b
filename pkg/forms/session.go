package forms

import "sync"

// SessionState owns the mutable state of one in-progress form session: the
// answer map and the current step index. Visibility queries, validation and
// auto-save all read through its accessors; nothing else mutates the map.
// The config is immutable for the session's lifetime.
//
// Reads and writes are guarded so the auto-save timer goroutine can snapshot
// answers while the UI thread mutates them.
type SessionState struct {
	mu sync.Mutex

	config     *FormConfig
	sessionID  string
	current    int
	answers    Answers
	submitting bool
}

// NewSessionState creates a session at step 0 with no answers.
func NewSessionState(config *FormConfig, sessionID string) *SessionState {
	return &SessionState{
		config:    config,
		sessionID: sessionID,
		answers:   make(Answers),
	}
}

// SessionID returns the backend-issued session identifier. It is the only
// piece of session state persisted locally across reloads; answers and the
// step index rehydrate from the backend via Restore.
func (s *SessionState) SessionID() string { return s.sessionID }

// Config returns the form config the session runs against.
func (s *SessionState) Config() *FormConfig { return s.config }

// Restore rehydrates step index and answers fetched from the backend.
func (s *SessionState) Restore(currentStep int, answers Answers) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = clamp(currentStep, 0, len(s.config.Steps)-1)
	s.answers = answers.Clone()

	if s.answers == nil {
		s.answers = make(Answers)
	}
}

// SetAnswer upserts one answer. It neither validates nor advances.
func (s *SessionState) SetAnswer(questionID string, value AnswerValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers[questionID] = value
}

// Answer returns the stored answer for a question and whether it was answered.
func (s *SessionState) Answer(questionID string) (AnswerValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.answers[questionID]

	return v, ok
}

// Answers returns a snapshot of the answer map.
func (s *SessionState) Answers() Answers {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.answers.Clone()
}

// CurrentStep returns the current step index.
func (s *SessionState) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// NextStep advances to the next visible step, skipping conditionally hidden
// ones. At the last visible step it is a no-op; the index never leaves
// [0, len(steps)-1].
func (s *SessionState) NextStep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next := s.config.NextVisibleStep(s.current, s.answers); next != -1 {
		s.current = next
	}
}

// PreviousStep retreats to the previous visible step, skipping hidden ones.
// At the first step it is a no-op.
//
// When every question on the step being left auto-advances (radio,
// radio-image, consent), the step's answers are cleared on the way back.
// Forward navigation never clears, and mixed steps keep their answers in
// both directions.
func (s *SessionState) PreviousStep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.config.PreviousVisibleStep(s.current, s.answers)
	if prev == -1 {
		return
	}

	if s.stepAutoAdvances(s.current) {
		s.clearStepLocked(s.current)
	}

	s.current = prev
}

// GoToStep jumps to an index, clamped into range. Visibility is not checked;
// programmatic jumps (e.g. restoring backend state) may land anywhere.
func (s *SessionState) GoToStep(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = clamp(index, 0, len(s.config.Steps)-1)
}

// VisibleQuestions returns the visible questions of the current step.
func (s *SessionState) VisibleQuestions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.config.VisibleQuestions(s.current, s.answers)
}

// CanProceed reports whether every currently visible required question on the
// current step has a non-empty answer. This is the gate for the continue
// control: it checks presence only, so an answer can pass here and still fail
// field-level format validation on submit.
func (s *SessionState) CanProceed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range s.config.VisibleQuestions(s.current, s.answers) {
		if !q.Required || !q.Type.IsInput() {
			continue
		}

		answer, answered := s.answers[q.ID]
		if !answered || answer.IsEmpty() {
			return false
		}
	}

	return true
}

// Progress returns completion as a percentage of configured steps:
// (current+1)/len(steps)*100. Conditionally skipped steps still count, so
// progress is monotonic but can jump non-uniformly. Known limitation, kept.
func (s *SessionState) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.config.Steps) == 0 {
		return 0
	}

	return float64(s.current+1) / float64(len(s.config.Steps)) * 100
}

// ClearStepAnswers removes every answer belonging to the step at index.
func (s *SessionState) ClearStepAnswers(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearStepLocked(index)
}

// SetSubmitting flags that a submit request is in flight. Step advance is
// blocked until the terminal response arrives.
func (s *SessionState) SetSubmitting(submitting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitting = submitting
}

// Submitting reports whether a submit request is in flight.
func (s *SessionState) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.submitting
}

// Reset clears answers, returns to step 0, and clears the submitting flag.
// The session id is kept; callers decide whether to discard it.
func (s *SessionState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers = make(Answers)
	s.current = 0
	s.submitting = false
}

func (s *SessionState) clearStepLocked(index int) {
	if index < 0 || index >= len(s.config.Steps) {
		return
	}

	for _, q := range s.config.Steps[index].Questions {
		delete(s.answers, q.ID)
	}
}

// stepAutoAdvances reports whether every question on the step is of an
// auto-advance type. Breather screens don't count against it.
func (s *SessionState) stepAutoAdvances(index int) bool {
	if index < 0 || index >= len(s.config.Steps) {
		return false
	}

	sawInput := false

	for _, q := range s.config.Steps[index].Questions {
		if !q.Type.IsInput() {
			continue
		}

		sawInput = true

		if !q.Type.AutoAdvances() {
			return false
		}
	}

	return sawInput
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
