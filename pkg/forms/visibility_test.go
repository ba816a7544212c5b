package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// intakeConfig is a three-step schema with a conditionally hidden question and
// a conditionally hidden middle step.
func intakeConfig() *FormConfig {
	return &FormConfig{Steps: []FormStep{
		{
			ID: "basics",
			Questions: []Question{
				{ID: "smoker", Type: TypeRadio, Required: true, Options: yesNo()},
				{
					ID:       "cigarettes_per_day",
					Type:     TypeInteger,
					Required: true,
					ShowWhen: When("smoker", OpEquals, "yes"),
				},
			},
		},
		{
			ID:       "smoking_history",
			ShowWhen: When("smoker", OpEquals, "yes"),
			Questions: []Question{
				{ID: "years_smoking", Type: TypeInteger, Required: true},
			},
		},
		{
			ID: "review",
			Questions: []Question{
				{ID: "terms", Type: TypeConsent, Required: true},
			},
		},
	}}
}

func yesNo() []Option {
	return []Option{{Value: "yes", Label: "Yes"}, {Value: "no", Label: "No"}}
}

func TestIsStepVisible(t *testing.T) {
	cfg := intakeConfig()

	t.Run("unconditional steps are always visible", func(t *testing.T) {
		assert.True(t, cfg.IsStepVisible(0, nil))
		assert.True(t, cfg.IsStepVisible(2, nil))
	})

	t.Run("conditional step follows its own showWhen", func(t *testing.T) {
		assert.False(t, cfg.IsStepVisible(1, Answers{}))
		assert.False(t, cfg.IsStepVisible(1, Answers{"smoker": Text("no")}))
		assert.True(t, cfg.IsStepVisible(1, Answers{"smoker": Text("yes")}))
	})

	t.Run("out of range is not visible", func(t *testing.T) {
		assert.False(t, cfg.IsStepVisible(-1, nil))
		assert.False(t, cfg.IsStepVisible(3, nil))
	})
}

func TestVisibleQuestions(t *testing.T) {
	cfg := intakeConfig()

	t.Run("hidden until upstream answer set", func(t *testing.T) {
		visible := cfg.VisibleQuestions(0, Answers{})
		require.Len(t, visible, 1)
		assert.Equal(t, "smoker", visible[0].ID)

		visible = cfg.VisibleQuestions(0, Answers{"smoker": Text("yes")})
		require.Len(t, visible, 2)
		assert.Equal(t, "smoker", visible[0].ID)
		assert.Equal(t, "cigarettes_per_day", visible[1].ID)
	})

	t.Run("idempotent for unchanged answers", func(t *testing.T) {
		answers := Answers{"smoker": Text("yes")}
		first := cfg.VisibleQuestions(0, answers)
		second := cfg.VisibleQuestions(0, answers)
		assert.Equal(t, first, second)
	})

	t.Run("out of range yields nil", func(t *testing.T) {
		assert.Nil(t, cfg.VisibleQuestions(5, nil))
	})
}

func TestStepWalking(t *testing.T) {
	cfg := intakeConfig()

	t.Run("next skips hidden step", func(t *testing.T) {
		assert.Equal(t, 2, cfg.NextVisibleStep(0, Answers{"smoker": Text("no")}))
		assert.Equal(t, 1, cfg.NextVisibleStep(0, Answers{"smoker": Text("yes")}))
	})

	t.Run("previous skips hidden step", func(t *testing.T) {
		assert.Equal(t, 0, cfg.PreviousVisibleStep(2, Answers{"smoker": Text("no")}))
		assert.Equal(t, 1, cfg.PreviousVisibleStep(2, Answers{"smoker": Text("yes")}))
	})

	t.Run("no previous before first step", func(t *testing.T) {
		assert.Equal(t, -1, cfg.PreviousVisibleStep(0, nil))
	})

	t.Run("no next after last step", func(t *testing.T) {
		assert.Equal(t, -1, cfg.NextVisibleStep(2, Answers{"smoker": Text("yes")}))
	})
}
