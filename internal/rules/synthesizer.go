package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"rulegen/internal/pattern"
	"rulegen/internal/report"
)

// ruleIDWidth is the zero-padding of the sequential rule suffix. The
// sequence is an output-format invariant: downstream tooling references
// rules by it.
const ruleIDWidth = 5

// Synthesizer maps migration patterns to detection rules: it picks the
// provider per pattern, decides between a single condition and a combo,
// and assigns sequential rule IDs across the whole run.
type Synthesizer struct {
	sourceTech string
	targetTech string
	prefix     string
	symbolLang string // non-empty when a symbolic provider exists for the source language
	rep        *report.RunReport
}

func NewSynthesizer(sourceTech, targetTech string, rep *report.RunReport) *Synthesizer {
	return &Synthesizer{
		sourceTech: sourceTech,
		targetTech: targetTech,
		prefix:     fmt.Sprintf("%s-to-%s", pattern.Slugify(sourceTech), pattern.Slugify(targetTech)),
		symbolLang: symbolicLanguageFor(sourceTech),
		rep:        rep,
	}
}

// SymbolicLanguage returns the language key symbolic leaves resolve
// against, or empty when only textual detection is available.
func (s *Synthesizer) SymbolicLanguage() string { return s.symbolLang }

// RulePrefix returns the {source}-to-{target} rule ID prefix.
func (s *Synthesizer) RulePrefix() string { return s.prefix }

// Synthesize converts patterns into rules. IDs are assigned in a single
// sequential pass after sorting by (chunk index, ordinal), so identical
// input always yields identical IDs regardless of extraction
// concurrency.
func (s *Synthesizer) Synthesize(patterns []pattern.MigrationPattern) []DetectionRule {
	sorted := append([]pattern.MigrationPattern(nil), patterns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ChunkIndex != sorted[j].ChunkIndex {
			return sorted[i].ChunkIndex < sorted[j].ChunkIndex
		}
		return sorted[i].Ordinal < sorted[j].Ordinal
	})

	rules := make([]DetectionRule, 0, len(sorted))
	for i, p := range sorted {
		rules = append(rules, DetectionRule{
			RuleID:          fmt.Sprintf("%s-%0*d", s.prefix, ruleIDWidth, i),
			Description:     describe(p),
			Condition:       s.buildCondition(p),
			Message:         composeMessage(p),
			Category:        p.Category,
			Effort:          p.EffortScore,
			Tier:            p.ComplexityTier,
			ConcernGroup:    p.Concern,
			Links:           p.SourceReferences,
			SourceConstruct: p.SourceConstruct,
		})
	}
	return rules
}

func (s *Synthesizer) buildCondition(p pattern.MigrationPattern) Condition {
	usage := Textual(usagePattern(p), scopeFor(p))
	generic := isGenericToken(p.SourceConstruct)

	switch {
	case generic && p.LocationHint.Structural() && s.symbolLang != "":
		// Symbolic proves the symbol resolves, textual proves it is used
		// in the flagged form; neither alone is trustworthy for a
		// generic name.
		cond := And(Symbolic(symbolPattern(p), symbolLocation(p.LocationHint)), usage)
		s.rep.AddDecision("combo_synthesized", "synthesize", p.SourceConstruct,
			"generic construct with structural location: symbolic reference paired with textual usage check", "info")
		return cond
	case generic:
		// No reliable structural provider: pair the import statement
		// check with the usage check.
		cond := And(importVerification(p.SourceConstruct), usage)
		s.rep.AddDecision("combo_synthesized", "synthesize", p.SourceConstruct,
			"generic construct without symbolic provider: import check paired with textual usage check", "info")
		return cond
	default:
		return usage
	}
}

// usagePattern builds the regex that confirms the construct is used in
// the offending syntactic form.
func usagePattern(p pattern.MigrationPattern) string {
	quoted := regexp.QuoteMeta(strings.TrimSpace(p.SourceConstruct))
	switch p.LocationHint {
	case pattern.LocationMethodCall:
		return quoted + `\(`
	case pattern.LocationAnnotation:
		if !strings.HasPrefix(quoted, "@") {
			return "@" + quoted
		}
		return quoted
	default:
		return quoted
	}
}

// importVerification builds the textual check asserting the construct's
// conventional package is imported.
func importVerification(construct string) Condition {
	if pkg, ok := genericImportPackage(construct); ok {
		if strings.ContainsAny(pkg, "@/") {
			// JS-style module specifier.
			return Textual(`from\s+['"]`+regexp.QuoteMeta(pkg)+`['"]`, "")
		}
		return Textual(`import\s+`+regexp.QuoteMeta(pkg), "")
	}
	name := strings.TrimPrefix(strings.TrimSpace(construct), "@")
	return Textual(`import\s+.*`+regexp.QuoteMeta(name), "")
}

func symbolPattern(p pattern.MigrationPattern) string {
	return strings.TrimPrefix(strings.TrimSpace(p.SourceConstruct), "@")
}

func symbolLocation(hint pattern.LocationHint) string {
	switch hint {
	case pattern.LocationImport:
		return "IMPORT"
	case pattern.LocationMethodCall:
		return "METHOD_CALL"
	case pattern.LocationAnnotation:
		return "ANNOTATION"
	default:
		return "TYPE"
	}
}

// scopeFor narrows textual matching by file extension where the content
// type implies one.
func scopeFor(p pattern.MigrationPattern) string {
	switch {
	case p.LocationHint == pattern.LocationConfigKey:
		return "*.{properties,yaml,yml,xml,json}"
	case strings.HasPrefix(p.SourceConstruct, ".") && p.LocationHint == pattern.LocationFreeText:
		// Leading-dot constructs in free text are CSS selectors.
		return "*.{css,scss}"
	default:
		return ""
	}
}

// symbolicLanguageFor reports which language family has a symbol-index
// provider available. Only Java-family analyzers resolve symbols; CSS,
// config files and JS guides fall back to textual detection.
func symbolicLanguageFor(tech string) string {
	lower := strings.ToLower(tech)
	for _, marker := range []string{"java", "jakarta", "spring", "quarkus", "hibernate", "camel"} {
		if strings.Contains(lower, marker) {
			return "java"
		}
	}
	return ""
}

func describe(p pattern.MigrationPattern) string {
	if p.TargetConstruct != "" {
		return fmt.Sprintf("%s should be replaced with %s", p.SourceConstruct, p.TargetConstruct)
	}
	return fmt.Sprintf("%s has been removed", p.SourceConstruct)
}

// composeMessage concatenates the rationale with verbatim before/after
// blocks; no truncation, no reformatting beyond the fixed template.
func composeMessage(p pattern.MigrationPattern) string {
	var sb strings.Builder
	sb.WriteString(p.Rationale)
	if strings.TrimSpace(p.ExampleBefore) != "" {
		sb.WriteString("\n\nBefore:\n```\n")
		sb.WriteString(p.ExampleBefore)
		sb.WriteString("\n```")
	}
	if strings.TrimSpace(p.ExampleAfter) != "" {
		sb.WriteString("\n\nAfter:\n```\n")
		sb.WriteString(p.ExampleAfter)
		sb.WriteString("\n```")
	}
	return strings.TrimSpace(sb.String())
}
