package forms

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidQuestionType is returned when a schema carries an unrecognized question type.
var ErrInvalidQuestionType = errors.New("invalid question type")

// QuestionType represents a question's input kind as an enum.
// Use String() to get the string representation for API/schema JSON.
type QuestionType uint8

// Question type constants; string form is given in questionTypeMap.
const (
	TypeText QuestionType = iota
	TypeEmail
	TypeTel
	TypeCPF
	TypeNumber
	TypeInteger
	TypeTextarea
	TypeDate
	TypeRadio
	TypeRadioImage
	TypeCheckbox
	TypeConsent
	TypeBreather
)

// questionTypeMap maps string representations to QuestionType enums.
// This is the single source of truth for valid question type strings.
var questionTypeMap = map[string]QuestionType{
	"text":        TypeText,
	"email":       TypeEmail,
	"tel":         TypeTel,
	"cpf":         TypeCPF,
	"number":      TypeNumber,
	"integer":     TypeInteger,
	"textarea":    TypeTextarea,
	"date":        TypeDate,
	"radio":       TypeRadio,
	"radio-image": TypeRadioImage,
	"checkbox":    TypeCheckbox,
	"consent":     TypeConsent,
	"breather":    TypeBreather,
}

// reverseQuestionTypeMap maps QuestionType enums to string representations.
// Built at init time from questionTypeMap for O(1) lookups.
var reverseQuestionTypeMap map[QuestionType]string

func init() {
	reverseQuestionTypeMap = make(map[QuestionType]string, len(questionTypeMap))
	for str, qt := range questionTypeMap {
		reverseQuestionTypeMap[qt] = str
	}
}

// String returns the string representation of a QuestionType.
// Implements fmt.Stringer. Returns empty string for invalid types.
func (qt QuestionType) String() string {
	str, ok := reverseQuestionTypeMap[qt]
	if !ok {
		return ""
	}

	return str
}

// ParseQuestionType converts a string to a QuestionType enum.
// Returns the QuestionType and true if valid, or 0 and false if invalid.
func ParseQuestionType(s string) (QuestionType, bool) {
	qt, ok := questionTypeMap[s]

	return qt, ok
}

// IsValidQuestionType checks if a question type string is valid.
func IsValidQuestionType(s string) bool {
	_, ok := questionTypeMap[s]

	return ok
}

// IsChoice reports whether answers for this type come from a fixed option list.
func (qt QuestionType) IsChoice() bool {
	switch qt {
	case TypeRadio, TypeRadioImage, TypeCheckbox:
		return true
	default:
		return false
	}
}

// IsMultiValue reports whether answers for this type are a selection list
// rather than a single string.
func (qt QuestionType) IsMultiValue() bool {
	return qt == TypeCheckbox
}

// IsInput reports whether this type collects an answer at all.
// Breather screens are informational only.
func (qt QuestionType) IsInput() bool {
	return qt != TypeBreather
}

// AutoAdvances reports whether selecting an answer of this type may advance the
// form to the next step without an explicit continue action.
func (qt QuestionType) AutoAdvances() bool {
	switch qt {
	case TypeRadio, TypeRadioImage, TypeConsent:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the type as its schema string.
func (qt QuestionType) MarshalJSON() ([]byte, error) {
	s := qt.String()
	if s == "" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuestionType, qt)
	}

	return json.Marshal(s)
}

// UnmarshalJSON decodes the type from its schema string.
func (qt *QuestionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode question type: %w", err)
	}

	parsed, ok := ParseQuestionType(s)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidQuestionType, s)
	}

	*qt = parsed

	return nil
}
