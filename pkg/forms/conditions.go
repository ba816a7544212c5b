package forms

import (
	"encoding/json"
	"fmt"
)

// Operator compares a collected answer against a schema value.
type Operator string

// Supported condition operators. Anything else evaluates to false.
const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
)

// Condition is a single predicate over one earlier answer.
type Condition struct {
	QuestionID string   `json:"questionId"`
	Operator   Operator `json:"operator"`
	Value      string   `json:"value"`
}

// Eval resolves the condition against the answers collected so far.
// A missing or dangling questionId fails closed: the condition is not met for
// equals/contains and therefore met for their negations, matching an
// unanswered question. Unknown operators are always false.
func (c Condition) Eval(answers Answers) bool {
	answer, answered := answers[c.QuestionID]

	switch c.Operator {
	case OpEquals:
		return answered && answer.EqualsString(c.Value)
	case OpNotEquals:
		return !(answered && answer.EqualsString(c.Value))
	case OpContains:
		return answered && answer.ContainsString(c.Value)
	case OpNotContains:
		return !(answered && answer.ContainsString(c.Value))
	default:
		return false
	}
}

// ConditionGroup combines conditions: All is a conjunction, Any a disjunction.
// When a malformed schema supplies both, All wins (legacy dialect precedence).
type ConditionGroup struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`
}

// Eval resolves the group. An empty All list is vacuously true; an empty Any
// list is false. A group carrying neither key is false.
func (g ConditionGroup) Eval(answers Answers) bool {
	if g.All != nil {
		for _, c := range g.All {
			if !c.Eval(answers) {
				return false
			}
		}

		return true
	}

	if g.Any != nil {
		for _, c := range g.Any {
			if c.Eval(answers) {
				return true
			}
		}

		return false
	}

	return false
}

// ruleKind tags the Rule union.
type ruleKind uint8

const (
	ruleLeaf ruleKind = iota
	ruleGroup
)

// Rule is the visibility condition attached to a question or step: either a
// single Condition or a one-level ConditionGroup. The two schema dialects are
// distinguished at decode time by the presence of the all/any keys, and kept
// as an explicit tagged variant afterwards. Groups do not nest.
type Rule struct {
	kind  ruleKind
	leaf  Condition
	group ConditionGroup
}

// When builds a leaf rule.
func When(questionID string, op Operator, value string) *Rule {
	return &Rule{kind: ruleLeaf, leaf: Condition{QuestionID: questionID, Operator: op, Value: value}}
}

// AllOf builds a conjunction rule. With no conditions it is vacuously true.
func AllOf(conditions ...Condition) *Rule {
	if conditions == nil {
		conditions = []Condition{}
	}

	return &Rule{kind: ruleGroup, group: ConditionGroup{All: conditions}}
}

// AnyOf builds a disjunction rule. With no conditions it is always false.
func AnyOf(conditions ...Condition) *Rule {
	if conditions == nil {
		conditions = []Condition{}
	}

	return &Rule{kind: ruleGroup, group: ConditionGroup{Any: conditions}}
}

// Eval resolves the rule against the answers collected so far. A nil rule
// (the schema carried no showWhen) is always true; this is the one place
// absence short-circuits to visible rather than hidden.
func (r *Rule) Eval(answers Answers) bool {
	if r == nil {
		return true
	}

	if r.kind == ruleLeaf {
		return r.leaf.Eval(answers)
	}

	return r.group.Eval(answers)
}

// Conditions returns every leaf condition the rule references, for schema
// reference checks.
func (r *Rule) Conditions() []Condition {
	if r == nil {
		return nil
	}

	if r.kind == ruleLeaf {
		return []Condition{r.leaf}
	}

	out := make([]Condition, 0, len(r.group.All)+len(r.group.Any))
	out = append(out, r.group.All...)
	out = append(out, r.group.Any...)

	return out
}

// MarshalJSON encodes the rule in its original schema dialect.
func (r Rule) MarshalJSON() ([]byte, error) {
	if r.kind == ruleLeaf {
		return json.Marshal(r.leaf)
	}

	return json.Marshal(r.group)
}

// UnmarshalJSON decodes either dialect: an object carrying all or any is a
// group, anything else is a single condition.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var probe struct {
		All *json.RawMessage `json:"all"`
		Any *json.RawMessage `json:"any"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decode condition: %w", err)
	}

	if probe.All != nil || probe.Any != nil {
		var group ConditionGroup
		if err := json.Unmarshal(data, &group); err != nil {
			return fmt.Errorf("decode condition group: %w", err)
		}

		*r = Rule{kind: ruleGroup, group: group}

		return nil
	}

	var leaf Condition
	if err := json.Unmarshal(data, &leaf); err != nil {
		return fmt.Errorf("decode condition: %w", err)
	}

	*r = Rule{kind: ruleLeaf, leaf: leaf}

	return nil
}
