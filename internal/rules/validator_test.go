package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulegen/internal/pattern"
	"rulegen/internal/report"
)

func TestValidate_BroadGenericPatternUpgradedToCombo(t *testing.T) {
	rep := report.NewRunReport("test")
	val := NewValidator(rep)

	out := val.Validate([]DetectionRule{{
		RuleID:          "react-17-to-react-18-00000",
		Condition:       Textual("render", ""),
		Tier:            pattern.TierLow,
		Effort:          2,
		SourceConstruct: "render",
	}})
	require.Len(t, out, 1)

	cond := out[0].Condition
	require.True(t, cond.IsCombo())
	assert.Equal(t, OpAnd, cond.Op)
	assert.Contains(t, cond.Children[0].Pattern, "react-dom")
	assert.Equal(t, "render", cond.Children[1].Pattern)

	assert.Equal(t, 1, val.Repairs())
	assert.Equal(t, 1, rep.CountDecisions("rule_upgraded"))
}

func TestValidate_ImportInjectionIsIdempotent(t *testing.T) {
	rules := []DetectionRule{{
		RuleID:          "a-to-b-00000",
		Condition:       Textual("isOpen", ""),
		Tier:            pattern.TierTrivial,
		Effort:          1,
		SourceConstruct: "isOpen",
	}}

	first := NewValidator(report.NewRunReport("test"))
	once := first.Validate(rules)
	require.Equal(t, 1, first.Repairs())

	second := NewValidator(report.NewRunReport("test"))
	twice := second.Validate(once)
	assert.Equal(t, 0, second.Repairs(), "second pass must not re-inject")
	require.Len(t, twice, 1)
	assert.Equal(t, once[0].Condition.Canonical(), twice[0].Condition.Canonical())
}

func TestValidate_BroadUnknownPatternOnlyWarns(t *testing.T) {
	rep := report.NewRunReport("test")
	val := NewValidator(rep)

	out := val.Validate([]DetectionRule{{
		RuleID:          "a-to-b-00000",
		Condition:       Textual("widget", ""),
		Tier:            pattern.TierMedium,
		Effort:          5,
		SourceConstruct: "widget",
	}})
	require.Len(t, out, 1)
	assert.False(t, out[0].Condition.IsCombo(), "no safe auto-fix without a known package")
	assert.Equal(t, 0, val.Repairs())
	assert.Equal(t, 1, rep.CountDecisions("broad_pattern"))
}

func TestValidate_AnchoredPatternNotBroad(t *testing.T) {
	rep := report.NewRunReport("test")
	NewValidator(rep).Validate([]DetectionRule{{
		RuleID:          "a-to-b-00000",
		Condition:       Textual(`ReactDOM\.render\(`, ""),
		Tier:            pattern.TierLow,
		Effort:          2,
		SourceConstruct: "ReactDOM.render",
	}})
	assert.Equal(t, 0, rep.CountDecisions("broad_pattern"))
}

func TestValidate_DuplicateConditionsCollapse(t *testing.T) {
	rep := report.NewRunReport("test")
	val := NewValidator(rep)

	out := val.Validate([]DetectionRule{
		{
			RuleID:          "a-to-b-00000",
			Condition:       Textual(`Wizard\.open\(`, ""),
			Tier:            pattern.TierMedium,
			Effort:          4,
			SourceConstruct: "Wizard.open",
			Links:           []pattern.Link{{URL: "https://a.example"}},
		},
		{
			RuleID:          "a-to-b-00003",
			Condition:       Textual(`Wizard\.open\(`, ""),
			Tier:            pattern.TierMedium,
			Effort:          4,
			SourceConstruct: "Wizard.open",
			Links:           []pattern.Link{{URL: "https://b.example"}},
		},
	})

	require.Len(t, out, 1)
	assert.Equal(t, "a-to-b-00000", out[0].RuleID, "earliest rule ID survives")
	require.Len(t, out[0].Links, 2)
	assert.Equal(t, 1, rep.CountDecisions("duplicate_collapsed"))
	assert.Equal(t, 1, val.Repairs())
}

func TestValidate_EarliestIDSurvivesOutOfOrderInput(t *testing.T) {
	rep := report.NewRunReport("test")
	val := NewValidator(rep)

	// Loaded rule sets iterate files alphabetically by concern, so the
	// later ID can arrive first.
	out := val.Validate([]DetectionRule{
		{
			RuleID:          "a-to-b-00003",
			Condition:       Textual(`Wizard\.open\(`, ""),
			Tier:            pattern.TierMedium,
			Effort:          4,
			SourceConstruct: "Wizard.open",
			Links:           []pattern.Link{{URL: "https://b.example"}},
		},
		{
			RuleID:          "a-to-b-00000",
			Condition:       Textual(`Wizard\.open\(`, ""),
			Tier:            pattern.TierMedium,
			Effort:          4,
			SourceConstruct: "Wizard.open",
			Links:           []pattern.Link{{URL: "https://a.example"}},
		},
	})

	require.Len(t, out, 1)
	assert.Equal(t, "a-to-b-00000", out[0].RuleID)
	require.Len(t, out[0].Links, 2)
	assert.Equal(t, 1, rep.CountDecisions("duplicate_collapsed"))
}

func TestValidate_ComboChildOrderIsStructurallyEqual(t *testing.T) {
	left := And(Textual("a", ""), Textual("b", ""))
	right := And(Textual("b", ""), Textual("a", ""))
	require.Equal(t, left.Canonical(), right.Canonical())

	out := NewValidator(report.NewRunReport("test")).Validate([]DetectionRule{
		{RuleID: "x-to-y-00000", Condition: left, Tier: pattern.TierMedium, Effort: 5, SourceConstruct: "SpecificConstructOne"},
		{RuleID: "x-to-y-00001", Condition: right, Tier: pattern.TierMedium, Effort: 5, SourceConstruct: "SpecificConstructOne"},
	})
	assert.Len(t, out, 1)
}

func TestValidate_EffortTierMismatchWarns(t *testing.T) {
	rep := report.NewRunReport("test")
	NewValidator(rep).Validate([]DetectionRule{{
		RuleID:          "a-to-b-00000",
		Condition:       Textual(`LegacyRouterOutlet`, ""),
		Tier:            pattern.TierTrivial,
		Effort:          9,
		SourceConstruct: "LegacyRouterOutlet",
	}})
	assert.Equal(t, 1, rep.CountDecisions("effort_mismatch"))
}

func TestValidate_IsIdempotentOverall(t *testing.T) {
	input := []DetectionRule{
		{RuleID: "a-to-b-00000", Condition: Textual("render", ""), Tier: pattern.TierLow, Effort: 2, SourceConstruct: "render"},
		{RuleID: "a-to-b-00001", Condition: Textual(`createHashRouter\(`, ""), Tier: pattern.TierMedium, Effort: 5, SourceConstruct: "createHashRouter"},
		{RuleID: "a-to-b-00002", Condition: Textual(`createHashRouter\(`, ""), Tier: pattern.TierMedium, Effort: 5, SourceConstruct: "createHashRouter"},
	}

	once := NewValidator(report.NewRunReport("test")).Validate(input)
	again := NewValidator(report.NewRunReport("test"))
	twice := again.Validate(once)

	assert.Equal(t, 0, again.Repairs())
	require.Equal(t, len(once), len(twice))
	for i := range once {
		assert.Equal(t, once[i].RuleID, twice[i].RuleID)
		assert.Equal(t, once[i].Condition.Canonical(), twice[i].Condition.Canonical())
	}
}
