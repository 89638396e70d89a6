package extract

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You are a migration-analysis assistant. You read migration documentation and extract concrete, detectable migration patterns. You only output JSON. Never output prose, explanations, or markdown fences.`

// PromptBuilder renders the extraction request for one chunk of guide
// text. The JSON contract below mirrors pattern.RawRecord.
type PromptBuilder struct{}

func (PromptBuilder) BuildExtractionPrompt(sourceTech, targetTech, chunkText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The documentation below describes migrating from %s to %s.\n", sourceTech, targetTech)
	sb.WriteString(`Extract every migration pattern: an old API, identifier, annotation, attribute, or configuration key that must or should change, and its replacement.

Respond with a single JSON object:
{"patterns": [
  {
    "source_construct": "old API or identifier (required, verbatim)",
    "target_construct": "replacement, empty string for pure removals",
    "location_hint": "one of: import, type-reference, method-call, annotation, attribute-usage, config-key, free-text",
    "complexity_tier": "one of: trivial, low, medium, high, expert",
    "effort_score": 1,
    "category": "one of: mandatory, potential, optional",
    "concern": "short grouping label such as security or routing",
    "rationale": "why this change is needed, suitable for a developer-facing message",
    "example_before": "minimal code fragment using the old construct",
    "example_after": "the same fragment after migration",
    "source_references": [{"url": "", "title": ""}]
  }
]}

Rules:
- effort_score is an integer from 1 to 10.
- Include a pattern only when the old construct is concrete enough to detect in code.
- Return {"patterns": []} when the text contains no migration patterns.

Documentation:
---
`)
	sb.WriteString(chunkText)
	sb.WriteString("\n---\n")
	return sb.String()
}
