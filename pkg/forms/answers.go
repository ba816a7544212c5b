package forms

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerValue holds a single collected answer: free text for single-value
// question types, a selection list for checkbox questions. The two shapes never
// compare equal to each other, so a schema condition comparing a checkbox
// answer against a scalar fails closed instead of coercing.
type AnswerValue struct {
	text   string
	list   []string
	isList bool
}

// Text builds a single-value answer.
func Text(s string) AnswerValue {
	return AnswerValue{text: s}
}

// Selection builds a multi-value answer (checkbox).
func Selection(values ...string) AnswerValue {
	list := make([]string, len(values))
	copy(list, values)

	return AnswerValue{list: list, isList: true}
}

// IsList reports whether the answer is a selection list.
func (v AnswerValue) IsList() bool { return v.isList }

// Text returns the scalar value; empty string when the answer is a list.
func (v AnswerValue) Text() string {
	if v.isList {
		return ""
	}

	return v.text
}

// List returns a copy of the selection list; nil when the answer is scalar.
func (v AnswerValue) List() []string {
	if !v.isList {
		return nil
	}

	out := make([]string, len(v.list))
	copy(out, v.list)

	return out
}

// Len returns the number of selected values, or 0 for scalar answers.
func (v AnswerValue) Len() int {
	if !v.isList {
		return 0
	}

	return len(v.list)
}

// IsEmpty reports whether the answer carries no value: empty string for scalar
// answers, empty list for selections.
func (v AnswerValue) IsEmpty() bool {
	if v.isList {
		return len(v.list) == 0
	}

	return v.text == ""
}

// EqualsString reports strict equality against a scalar schema value.
// List answers never equal a scalar.
func (v AnswerValue) EqualsString(s string) bool {
	return !v.isList && v.text == s
}

// ContainsString reports membership for list answers and substring containment
// for scalar answers.
func (v AnswerValue) ContainsString(s string) bool {
	if v.isList {
		for _, item := range v.list {
			if item == s {
				return true
			}
		}

		return false
	}

	return strings.Contains(v.text, s)
}

// Equal reports deep equality between two answers, including shape.
func (v AnswerValue) Equal(other AnswerValue) bool {
	if v.isList != other.isList {
		return false
	}

	if !v.isList {
		return v.text == other.text
	}

	if len(v.list) != len(other.list) {
		return false
	}

	for i, item := range v.list {
		if item != other.list[i] {
			return false
		}
	}

	return true
}

// MarshalJSON encodes the answer as a JSON string or string array.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		if v.list == nil {
			return json.Marshal([]string{})
		}

		return json.Marshal(v.list)
	}

	return json.Marshal(v.text)
}

// UnmarshalJSON accepts either a JSON string or a string array.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode answer list: %w", err)
		}

		*v = AnswerValue{list: list, isList: true}

		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}

	*v = AnswerValue{text: s}

	return nil
}

// Answers maps question ids to collected values. A missing key means the
// question was never answered; callers must not store empty placeholders.
type Answers map[string]AnswerValue

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}

	out := make(Answers, len(a))
	for id, v := range a {
		if v.isList {
			out[id] = Selection(v.list...)
		} else {
			out[id] = v
		}
	}

	return out
}

// Equal reports deep equality between two answer maps.
func (a Answers) Equal(other Answers) bool {
	if len(a) != len(other) {
		return false
	}

	for id, v := range a {
		ov, ok := other[id]
		if !ok || !v.Equal(ov) {
			return false
		}
	}

	return true
}
