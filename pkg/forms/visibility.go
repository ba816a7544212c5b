package forms

// Visibility queries are pure: they read the config and the answer map and
// never mutate either. A question hidden after being answered keeps its stale
// value in Answers until a caller deliberately clears it.

// IsStepVisible reports whether the step at index is visible given the answers
// collected so far. Only the step's own showWhen matters; a step whose every
// question is hidden still counts as visible as a container. Out-of-range
// indices are not visible.
func (c *FormConfig) IsStepVisible(index int, answers Answers) bool {
	if index < 0 || index >= len(c.Steps) {
		return false
	}

	return c.Steps[index].ShowWhen.Eval(answers)
}

// VisibleQuestions returns the questions of the step at index whose showWhen
// holds against answers, in schema order. Out-of-range indices yield nil.
func (c *FormConfig) VisibleQuestions(index int, answers Answers) []Question {
	if index < 0 || index >= len(c.Steps) {
		return nil
	}

	step := c.Steps[index]
	visible := make([]Question, 0, len(step.Questions))

	for _, q := range step.Questions {
		if q.ShowWhen.Eval(answers) {
			visible = append(visible, q)
		}
	}

	return visible
}

// PreviousVisibleStep walks indices downward from index-1 and returns the
// first visible one, or -1 when none exists.
func (c *FormConfig) PreviousVisibleStep(index int, answers Answers) int {
	for i := index - 1; i >= 0; i-- {
		if c.IsStepVisible(i, answers) {
			return i
		}
	}

	return -1
}

// NextVisibleStep walks indices upward from index+1 and returns the first
// visible one, or -1 when none exists. Step navigation must use this rather
// than index+1: a naive increment would land on conditionally skipped steps.
func (c *FormConfig) NextVisibleStep(index int, answers Answers) int {
	for i := index + 1; i < len(c.Steps); i++ {
		if c.IsStepVisible(i, answers) {
			return i
		}
	}

	return -1
}
