package main

import (
	"fmt"

	"rulegen/internal/emit"
	"rulegen/internal/report"
	"rulegen/internal/rules"
)

func newLintReport(dir string) *report.RunReport {
	return report.NewRunReport(dir)
}

func printDecisions(rep *report.RunReport) {
	for _, d := range rep.Decisions {
		marker := "ℹ️ "
		if d.Severity == "warning" {
			marker = "⚠️ "
		}
		fmt.Printf("%s %s %s: %s\n", marker, d.Kind, d.Subject, d.Rationale)
	}
}

// rewriteRules re-emits a repaired rule set over the existing directory.
// The techs and language come back out of the ruleset metadata, so a
// lint --write round trip preserves the original labels and filenames.
func rewriteRules(dir string, checked []rules.DetectionRule) error {
	meta, err := emit.LoadMeta(dir)
	if err != nil {
		return err
	}
	symbolLang := ""
	for _, r := range checked {
		if lang := symbolLangOf(r.Condition); lang != "" {
			symbolLang = lang
			break
		}
	}
	em := emit.NewEmitter(dir, meta.SourceTech, meta.TargetTech, meta.Name, symbolLang)
	_, err = em.Emit(checked)
	return err
}

func symbolLangOf(c rules.Condition) string {
	if c.IsCombo() {
		for _, child := range c.Children {
			if lang := symbolLangOf(child); lang != "" {
				return lang
			}
		}
		return ""
	}
	if c.Provider == rules.ProviderSymbolic {
		// Loaded symbolic leaves remember only pattern and location; the
		// language key was the map key and survives via the synthesizer
		// default, which is java for every symbolic provider we emit.
		return "java"
	}
	return ""
}
