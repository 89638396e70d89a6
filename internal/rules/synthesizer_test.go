package rules

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulegen/internal/pattern"
	"rulegen/internal/report"
)

func TestSynthesize_QualifiedMethodCallIsSingleTextual(t *testing.T) {
	rep := report.NewRunReport("test")
	syn := NewSynthesizer("React 17", "React 18", rep)

	out := syn.Synthesize([]pattern.MigrationPattern{{
		SourceConstruct: "ReactDOM.render",
		TargetConstruct: "createRoot",
		LocationHint:    pattern.LocationMethodCall,
		ComplexityTier:  pattern.TierLow,
		EffortScore:     2,
		Category:        pattern.CategoryMandatory,
		Concern:         "rendering",
		Rationale:       "render was removed in React 18.",
	}})
	require.Len(t, out, 1)

	r := out[0]
	assert.Equal(t, "react-17-to-react-18-00000", r.RuleID)
	require.False(t, r.Condition.IsCombo())
	assert.Equal(t, ProviderTextual, r.Condition.Provider)
	assert.Equal(t, `ReactDOM\.render\(`, r.Condition.Pattern)
	assert.Equal(t, pattern.CategoryMandatory, r.Category)
}

func TestSynthesize_GenericPropBecomesImportCombo(t *testing.T) {
	rep := report.NewRunReport("test")
	syn := NewSynthesizer("PatternFly 5", "PatternFly 6", rep)

	out := syn.Synthesize([]pattern.MigrationPattern{{
		SourceConstruct: "isActive",
		LocationHint:    pattern.LocationAttributeUsage,
		ComplexityTier:  pattern.TierTrivial,
		EffortScore:     1,
		Category:        pattern.CategoryMandatory,
		Concern:         "components",
	}})
	require.Len(t, out, 1)

	cond := out[0].Condition
	require.True(t, cond.IsCombo())
	assert.Equal(t, OpAnd, cond.Op)
	require.Len(t, cond.Children, 2)

	// Import verification targets the conventional package.
	assert.Contains(t, cond.Children[0].Pattern, "@patternfly/react-core")
	assert.Contains(t, cond.Children[0].Pattern, `from\s+`)
	// Usage check keeps the construct itself.
	assert.Equal(t, "isActive", cond.Children[1].Pattern)

	assert.Equal(t, 1, rep.CountDecisions("combo_synthesized"))
}

func TestSynthesize_JavaAnnotationUsesSymbolicProvider(t *testing.T) {
	rep := report.NewRunReport("test")
	syn := NewSynthesizer("Java EE", "Quarkus", rep)
	require.Equal(t, "java", syn.SymbolicLanguage())

	out := syn.Synthesize([]pattern.MigrationPattern{{
		SourceConstruct: "Stateless",
		LocationHint:    pattern.LocationAnnotation,
		ComplexityTier:  pattern.TierMedium,
		EffortScore:     5,
		Category:        pattern.CategoryMandatory,
		Concern:         "ejb",
	}})
	require.Len(t, out, 1)

	cond := out[0].Condition
	require.True(t, cond.IsCombo())
	assert.Equal(t, ProviderSymbolic, cond.Children[0].Provider)
	assert.Equal(t, "Stateless", cond.Children[0].Pattern)
	assert.Equal(t, "ANNOTATION", cond.Children[0].Location)
	assert.Equal(t, ProviderTextual, cond.Children[1].Provider)
	assert.Equal(t, "@Stateless", cond.Children[1].Pattern)
}

func TestSynthesize_SequentialIDsAcrossConcerns(t *testing.T) {
	rep := report.NewRunReport("test")
	syn := NewSynthesizer("angular", "react", rep)

	var patterns []pattern.MigrationPattern
	concerns := []struct {
		name  string
		count int
	}{{"routing", 5}, {"forms", 2}, {"http", 4}}
	chunk := 0
	for _, c := range concerns {
		for i := 0; i < c.count; i++ {
			patterns = append(patterns, pattern.MigrationPattern{
				SourceConstruct: fmt.Sprintf("SomeConstruct%s%d", c.name, i),
				LocationHint:    pattern.LocationTypeReference,
				EffortScore:     3,
				Category:        pattern.CategoryPotential,
				Concern:         c.name,
				ChunkIndex:      chunk,
				Ordinal:         i,
			})
		}
		chunk++
	}

	out := syn.Synthesize(patterns)
	require.Len(t, out, 11)
	for i, r := range out {
		assert.Equal(t, fmt.Sprintf("angular-to-react-%05d", i), r.RuleID)
	}
}

func TestSynthesize_OrderIndependentOfInputShuffle(t *testing.T) {
	mk := func(chunk, ord int, name string) pattern.MigrationPattern {
		return pattern.MigrationPattern{
			SourceConstruct: name,
			LocationHint:    pattern.LocationTypeReference,
			EffortScore:     3,
			Category:        pattern.CategoryPotential,
			ChunkIndex:      chunk,
			Ordinal:         ord,
		}
	}
	inOrder := []pattern.MigrationPattern{mk(0, 0, "AlphaComponent"), mk(0, 1, "BetaComponent"), mk(1, 0, "GammaComponent")}
	shuffled := []pattern.MigrationPattern{mk(1, 0, "GammaComponent"), mk(0, 1, "BetaComponent"), mk(0, 0, "AlphaComponent")}

	a := NewSynthesizer("a", "b", report.NewRunReport("test")).Synthesize(inOrder)
	b := NewSynthesizer("a", "b", report.NewRunReport("test")).Synthesize(shuffled)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].RuleID, b[i].RuleID)
		assert.Equal(t, a[i].SourceConstruct, b[i].SourceConstruct)
	}
}

func TestSynthesize_ConfigKeyGetsFileScope(t *testing.T) {
	out := NewSynthesizer("spring", "quarkus", report.NewRunReport("test")).Synthesize(
		[]pattern.MigrationPattern{{
			SourceConstruct: "spring.datasource.url",
			LocationHint:    pattern.LocationConfigKey,
			EffortScore:     2,
			Category:        pattern.CategoryMandatory,
		}})
	require.Len(t, out, 1)
	require.False(t, out[0].Condition.IsCombo())
	assert.Equal(t, "*.{properties,yaml,yml,xml,json}", out[0].Condition.ScopeFilter)
}

func TestSynthesize_CSSSelectorGetsStyleScope(t *testing.T) {
	out := NewSynthesizer("patternfly 5", "patternfly 6", report.NewRunReport("test")).Synthesize(
		[]pattern.MigrationPattern{{
			SourceConstruct: ".pf-c-button-legacy-modifier",
			LocationHint:    pattern.LocationFreeText,
			EffortScore:     1,
			Category:        pattern.CategoryOptional,
		}})
	require.Len(t, out, 1)
	assert.Equal(t, "*.{css,scss}", out[0].Condition.ScopeFilter)
}

func TestComposeMessage_KeepsExamplesVerbatim(t *testing.T) {
	msg := composeMessage(pattern.MigrationPattern{
		Rationale:     "The API moved.",
		ExampleBefore: "ReactDOM.render(<App/>, el);",
		ExampleAfter:  "createRoot(el).render(<App/>);",
	})
	assert.Contains(t, msg, "The API moved.")
	assert.Contains(t, msg, "Before:\n```\nReactDOM.render(<App/>, el);\n```")
	assert.Contains(t, msg, "After:\n```\ncreateRoot(el).render(<App/>);\n```")
}

func TestDescribe(t *testing.T) {
	withTarget := describe(pattern.MigrationPattern{SourceConstruct: "hydrate", TargetConstruct: "hydrateRoot"})
	assert.Equal(t, "hydrate should be replaced with hydrateRoot", withTarget)

	removed := describe(pattern.MigrationPattern{SourceConstruct: "findDOMNode"})
	assert.Equal(t, "findDOMNode has been removed", removed)
}
