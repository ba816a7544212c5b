package forms

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// ConsentAccepted is the literal a consent question's answer must equal.
const ConsentAccepted = "accepted"

// dateLayout is the wire format for date answers and min/max date bounds.
const dateLayout = "2006-01-02"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	telPattern   = regexp.MustCompile(`^\(?([0-9]{2})\)?[-.\s]?([0-9]{4,5})[-.\s]?([0-9]{4})$`)
)

// FieldError is a single field-level validation failure. It never escapes the
// field it belongs to: collecting code reports it inline, other fields keep
// validating.
type FieldError struct {
	QuestionID string `json:"questionId"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return e.QuestionID + ": " + e.Message
}

// checkFunc inspects a non-empty answer and returns a failure message, or ""
// when the check passes.
type checkFunc func(AnswerValue) string

// FieldRule is the generated validation ruleset for one question. Checks run
// in a fixed per-type order and stop at the first failure.
type FieldRule struct {
	QuestionID string
	Type       QuestionType
	Required   bool

	requiredMessage string
	checks          []checkFunc
}

// Check validates an answer against the rule. answered is false when the
// question has no key in the answer map. Optional questions skip every check
// on an empty or missing answer; required questions fail it.
func (r FieldRule) Check(answer AnswerValue, answered bool) *FieldError {
	if !answered || answer.IsEmpty() {
		if r.Required {
			return &FieldError{QuestionID: r.QuestionID, Message: r.requiredMessage}
		}

		return nil
	}

	for _, check := range r.checks {
		if msg := check(answer); msg != "" {
			return &FieldError{QuestionID: r.QuestionID, Message: msg}
		}
	}

	return nil
}

// FieldRules synthesizes the validation rule for one question. The second
// return is false for breather screens, which collect no answer and get no
// rule. The question's validation.message, when set, overrides the default
// text of every check on the field.
func FieldRules(q Question) (FieldRule, bool) {
	if !q.Type.IsInput() {
		return FieldRule{}, false
	}

	spec := q.Validation
	if spec == nil {
		spec = &ValidationSpec{}
	}

	msg := func(fallback string) string {
		if spec.Message != "" {
			return spec.Message
		}

		return fallback
	}

	rule := FieldRule{
		QuestionID:      q.ID,
		Type:            q.Type,
		Required:        q.Required,
		requiredMessage: msg("This field is required"),
	}

	switch q.Type {
	case TypeText, TypeTextarea:
		rule.checks = textChecks(spec, msg)
	case TypeEmail:
		rule.checks = []checkFunc{patternCheck(emailPattern, msg("Enter a valid email address"))}
	case TypeTel:
		rule.checks = []checkFunc{patternCheck(telPattern, msg("Enter a valid phone number"))}
	case TypeCPF:
		// Masked at input time; no checksum validation here.
	case TypeNumber:
		rule.checks = numberChecks(spec, msg, false)
	case TypeInteger:
		rule.checks = numberChecks(spec, msg, true)
	case TypeDate:
		rule.checks = dateChecks(spec, msg)
	case TypeRadio, TypeRadioImage:
		rule.checks = []checkFunc{func(v AnswerValue) string {
			if v.IsList() || v.Text() == "" {
				return msg("Select an option")
			}

			return ""
		}}
	case TypeCheckbox:
		rule.checks = checkboxChecks(spec, msg, q.Required)
	case TypeConsent:
		rule.checks = []checkFunc{func(v AnswerValue) string {
			if !v.EqualsString(ConsentAccepted) {
				return msg("You must accept to continue")
			}

			return ""
		}}
	}

	return rule, true
}

// FormRules generates the ruleset for a question list, keyed by question id.
// Callers must pass only the currently visible questions and regenerate
// whenever visibility changes: hidden questions contribute no rules at all, so
// a hidden required field can never block submission.
func FormRules(questions []Question) map[string]FieldRule {
	rules := make(map[string]FieldRule, len(questions))

	for _, q := range questions {
		if rule, ok := FieldRules(q); ok {
			rules[q.ID] = rule
		}
	}

	return rules
}

// CheckAll validates an answer map against generated rules and returns every
// field failure, in no particular order.
func CheckAll(rules map[string]FieldRule, answers Answers) []*FieldError {
	var failures []*FieldError

	for id, rule := range rules {
		answer, answered := answers[id]
		if ferr := rule.Check(answer, answered); ferr != nil {
			failures = append(failures, ferr)
		}
	}

	return failures
}

func textChecks(spec *ValidationSpec, msg func(string) string) []checkFunc {
	var checks []checkFunc

	if spec.MinLength != nil {
		minLen := *spec.MinLength
		checks = append(checks, func(v AnswerValue) string {
			if len([]rune(v.Text())) < minLen {
				return msg(fmt.Sprintf("Must be at least %d characters", minLen))
			}

			return ""
		})
	}

	if spec.MaxLength != nil {
		maxLen := *spec.MaxLength
		checks = append(checks, func(v AnswerValue) string {
			if len([]rune(v.Text())) > maxLen {
				return msg(fmt.Sprintf("Must be at most %d characters", maxLen))
			}

			return ""
		})
	}

	if spec.Pattern != "" {
		// An uncompilable pattern degrades to no check rather than failing
		// every answer: broken schemas must not lock the form.
		if re, err := regexp.Compile(spec.Pattern); err == nil {
			checks = append(checks, patternCheck(re, msg("Invalid format")))
		}
	}

	return checks
}

func patternCheck(re *regexp.Regexp, failure string) checkFunc {
	return func(v AnswerValue) string {
		if !re.MatchString(v.Text()) {
			return failure
		}

		return ""
	}
}

func numberChecks(spec *ValidationSpec, msg func(string) string, integral bool) []checkFunc {
	checks := []checkFunc{func(v AnswerValue) string {
		if _, err := strconv.ParseFloat(v.Text(), 64); err != nil {
			return msg("Enter a valid number")
		}

		return ""
	}}

	if spec.Min != nil {
		minVal := *spec.Min
		checks = append(checks, func(v AnswerValue) string {
			if n, err := strconv.ParseFloat(v.Text(), 64); err == nil && n < minVal {
				return msg(fmt.Sprintf("Must be at least %v", minVal))
			}

			return ""
		})
	}

	if spec.Max != nil {
		maxVal := *spec.Max
		checks = append(checks, func(v AnswerValue) string {
			if n, err := strconv.ParseFloat(v.Text(), 64); err == nil && n > maxVal {
				return msg(fmt.Sprintf("Must be at most %v", maxVal))
			}

			return ""
		})
	}

	if integral {
		checks = append(checks, func(v AnswerValue) string {
			if n, err := strconv.ParseFloat(v.Text(), 64); err == nil && n != math.Trunc(n) {
				return msg("Enter a whole number")
			}

			return ""
		})
	}

	return checks
}

func dateChecks(spec *ValidationSpec, msg func(string) string) []checkFunc {
	checks := []checkFunc{func(v AnswerValue) string {
		if _, err := time.Parse(dateLayout, v.Text()); err != nil {
			return msg("Enter a valid date")
		}

		return ""
	}}

	if minDate, err := time.Parse(dateLayout, spec.MinDate); spec.MinDate != "" && err == nil {
		checks = append(checks, func(v AnswerValue) string {
			if d, err := time.Parse(dateLayout, v.Text()); err == nil && d.Before(minDate) {
				return msg(fmt.Sprintf("Date must be on or after %s", spec.MinDate))
			}

			return ""
		})
	}

	if maxDate, err := time.Parse(dateLayout, spec.MaxDate); spec.MaxDate != "" && err == nil {
		checks = append(checks, func(v AnswerValue) string {
			if d, err := time.Parse(dateLayout, v.Text()); err == nil && d.After(maxDate) {
				return msg(fmt.Sprintf("Date must be on or before %s", spec.MaxDate))
			}

			return ""
		})
	}

	return checks
}

func checkboxChecks(spec *ValidationSpec, msg func(string) string, required bool) []checkFunc {
	minSelected := 0
	if required {
		minSelected = 1
	}

	if spec.MinSelected != nil {
		minSelected = *spec.MinSelected
	}

	var checks []checkFunc

	if minSelected > 0 {
		minSel := minSelected
		checks = append(checks, func(v AnswerValue) string {
			if v.Len() < minSel {
				return msg(fmt.Sprintf("Select at least %d options", minSel))
			}

			return ""
		})
	}

	if spec.MaxSelected != nil {
		maxSel := *spec.MaxSelected
		checks = append(checks, func(v AnswerValue) string {
			if v.Len() > maxSel {
				return msg(fmt.Sprintf("Select at most %d options", maxSel))
			}

			return ""
		})
	}

	return checks
}
