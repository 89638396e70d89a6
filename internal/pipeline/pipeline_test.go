package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulegen/internal/config"
	"rulegen/internal/emit"
	"rulegen/internal/llm"
)

// guideOracle answers every extraction prompt with the same two patterns,
// one of which duplicates across chunks to exercise normalization.
type guideOracle struct{}

func (guideOracle) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	return `{"patterns": [
		{
			"source_construct": "ReactDOM.render",
			"target_construct": "createRoot",
			"location_hint": "method-call",
			"complexity_tier": "low",
			"effort_score": 2,
			"category": "mandatory",
			"concern": "Rendering",
			"rationale": "render was removed in React 18.",
			"example_before": "ReactDOM.render(el, node);",
			"example_after": "createRoot(node).render(el);"
		},
		{
			"source_construct": "isActive",
			"target_construct": "isClicked",
			"location_hint": "attribute-usage",
			"complexity_tier": "trivial",
			"effort_score": 1,
			"category": "mandatory",
			"concern": "Component Props",
			"rationale": "The prop was renamed."
		}
	]}`, nil
}

func (guideOracle) Name() string { return "guide-fake" }

func writeGuide(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guide.md")
	content := strings.Repeat("Replace ReactDOM.render with createRoot when upgrading.\n\n", 3) +
		"The isActive prop on Button was renamed to isClicked.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "rules")

	result, err := Run(context.Background(), Options{
		Source:     writeGuide(t),
		SourceTech: "React 17",
		TargetTech: "React 18",
		OutputDir:  outDir,
		Oracle:     guideOracle{},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Documents)
	assert.GreaterOrEqual(t, result.Chunks, 1)
	// The oracle repeats the same two patterns per chunk; normalization
	// leaves exactly two.
	assert.Equal(t, 2, result.Patterns)
	assert.Equal(t, 2, result.Rules)

	loaded, err := emit.LoadRules(outDir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byID := map[string]bool{}
	concerns := map[string]bool{}
	for _, r := range loaded {
		byID[r.RuleID] = true
		concerns[r.ConcernGroup] = true
	}
	assert.True(t, byID["react-17-to-react-18-00000"])
	assert.True(t, byID["react-17-to-react-18-00001"])
	assert.True(t, concerns["rendering"])
	assert.True(t, concerns["component-props"])

	// The generic prop rule carries an import cross-check.
	for _, r := range loaded {
		if r.RuleID == "react-17-to-react-18-00001" {
			require.True(t, r.Condition.IsCombo())
		}
	}

	assert.FileExists(t, filepath.Join(outDir, "ruleset.yaml"))
	assert.FileExists(t, filepath.Join(outDir, "run-report.json"))
	require.NotNil(t, result.Report)
	assert.Equal(t, 2, result.Report.Summary.RulesEmitted)
	assert.Equal(t, 0, result.Report.Summary.ChunksSkipped)
}

// emptyOracle extracts nothing from any chunk.
type emptyOracle struct{}

func (emptyOracle) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return `{"patterns": []}`, nil
}

func (emptyOracle) Name() string { return "empty-fake" }

func TestRun_ZeroPatternsIsHardFailure(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "rules")

	_, err := Run(context.Background(), Options{
		Source:     writeGuide(t),
		SourceTech: "React 17",
		TargetTech: "React 18",
		OutputDir:  outDir,
		Oracle:     emptyOracle{},
	})
	require.ErrorIs(t, err, ErrNoPatterns)

	// The report is still written for diagnosis.
	assert.FileExists(t, filepath.Join(outDir, "run-report.json"))
}

func TestRun_MissingSourceFails(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Source:     filepath.Join(t.TempDir(), "does-not-exist.md"),
		SourceTech: "a",
		TargetTech: "b",
		OutputDir:  t.TempDir(),
		Oracle:     guideOracle{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading source")
}

func TestRun_DeterministicRuleIDsAcrossRuns(t *testing.T) {
	guide := writeGuide(t)
	cfg := config.Default()
	cfg.Extraction.Workers = 4

	run := func() []string {
		out := filepath.Join(t.TempDir(), "rules")
		_, err := Run(context.Background(), Options{
			Source:     guide,
			SourceTech: "React 17",
			TargetTech: "React 18",
			OutputDir:  out,
			Config:     cfg,
			Oracle:     guideOracle{},
		})
		require.NoError(t, err)
		loaded, err := emit.LoadRules(out)
		require.NoError(t, err)
		ids := make([]string, 0, len(loaded))
		for _, r := range loaded {
			ids = append(ids, r.RuleID+"|"+r.Condition.Canonical())
		}
		return ids
	}

	assert.ElementsMatch(t, run(), run())
}
