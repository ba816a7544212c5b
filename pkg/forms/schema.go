// Package forms implements the conditional form engine behind Careform intake
// questionnaires: the schema model for dynamically configured multi-step forms,
// the visibility-condition evaluator, the per-field validation rule generator,
// and the step/answer session state machine. The schema is authored on the
// backend (or in the admin dashboard) and shipped to clients as JSON; this
// package is shared by the API server, which re-validates on submit, and the
// intake client.
package forms

import (
	"errors"
	"fmt"
)

// Schema validation errors.
var (
	ErrDuplicateQuestionID = errors.New("duplicate question id")
	ErrDanglingReference   = errors.New("condition references unknown question")
	ErrForwardReference    = errors.New("condition references a later question")
	ErrMissingOptions      = errors.New("choice question has no options")
	ErrEmptyForm           = errors.New("form has no steps")
	ErrMissingQuestionID   = errors.New("question has no id")
)

// Option is one selectable choice for radio, radio-image, and checkbox questions.
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// ValidationSpec carries the per-question validation knobs recognized by the
// rule generator. Every field is optional; Message overrides the default error
// text for any rule on the question.
type ValidationSpec struct {
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
	MinDate     string   `json:"minDate,omitempty"`
	MaxDate     string   `json:"maxDate,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	MinSelected *int     `json:"minSelected,omitempty"`
	MaxSelected *int     `json:"maxSelected,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Grid is a layout hint for choice questions rendered as an option grid.
type Grid struct {
	Cols      int    `json:"cols,omitempty"`
	ImageSize string `json:"imageSize,omitempty"`
}

// Question is one form field or informational screen.
type Question struct {
	ID          string          `json:"id"`
	Type        QuestionType    `json:"type"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Observation string          `json:"observation,omitempty"`
	Image       string          `json:"image,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Options     []Option        `json:"options,omitempty"`
	Validation  *ValidationSpec `json:"validation,omitempty"`
	Grid        *Grid           `json:"grid,omitempty"`
	// ShowWhen gates visibility; nil means always visible.
	ShowWhen *Rule `json:"showWhen,omitempty"`
}

// FormStep is one ordered page of questions, itself conditionally visible.
type FormStep struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
	ShowWhen    *Rule      `json:"showWhen,omitempty"`
}

// FormConfig is the complete schema for one form instance. It is immutable for
// the lifetime of a session: StartSession snapshots the published config.
type FormConfig struct {
	Steps []FormStep `json:"steps"`
}

// Question returns the question with the given id and true, or a zero Question
// and false.
func (c *FormConfig) Question(id string) (Question, bool) {
	for _, step := range c.Steps {
		for _, q := range step.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}

	return Question{}, false
}

// Validate checks the structural invariants a publishable schema must hold:
// question ids are unique across the whole form, choice questions carry
// options, and every condition references a question that appears earlier in
// the step/question ordering. Conditions are evaluated only against
// already-collected answers, so a reference to a later question could never
// fire and is rejected at publication rather than silently hiding fields.
func (c *FormConfig) Validate() error {
	if len(c.Steps) == 0 {
		return ErrEmptyForm
	}

	seen := make(map[string]struct{})

	checkRefs := func(owner string, rule *Rule) error {
		for _, cond := range rule.Conditions() {
			if _, ok := seen[cond.QuestionID]; ok {
				continue
			}

			if _, existsLater := c.Question(cond.QuestionID); existsLater {
				return fmt.Errorf("%w: %s showWhen %q", ErrForwardReference, owner, cond.QuestionID)
			}

			return fmt.Errorf("%w: %s showWhen %q", ErrDanglingReference, owner, cond.QuestionID)
		}

		return nil
	}

	for _, step := range c.Steps {
		if err := checkRefs(fmt.Sprintf("step %q", step.ID), step.ShowWhen); err != nil {
			return err
		}

		for qi, q := range step.Questions {
			if q.ID == "" {
				return fmt.Errorf("%w: step %q question %d", ErrMissingQuestionID, step.ID, qi)
			}

			if _, dup := seen[q.ID]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateQuestionID, q.ID)
			}

			if q.Type.IsChoice() && len(q.Options) == 0 {
				return fmt.Errorf("%w: %q", ErrMissingOptions, q.ID)
			}

			if err := checkRefs(fmt.Sprintf("question %q", q.ID), q.ShowWhen); err != nil {
				return err
			}

			seen[q.ID] = struct{}{}
		}
	}

	return nil
}
