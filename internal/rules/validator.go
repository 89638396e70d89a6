package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rulegen/internal/llm"
	"rulegen/internal/pattern"
	"rulegen/internal/report"
)

// Validator is the second, independent pass over synthesized rules. It
// repairs defects it is confident about (broad-pattern upgrade to combo,
// import-verification injection, structural duplicates) and reports the
// rest as warnings. Every repair is idempotent: validating already
// repaired rules produces zero further changes.
type Validator struct {
	rep     *report.RunReport
	oracle  llm.Oracle
	repairs int
}

func NewValidator(rep *report.RunReport) *Validator {
	return &Validator{rep: rep}
}

// WithOracle enables the optional description/pattern alignment check.
func (v *Validator) WithOracle(o llm.Oracle) *Validator {
	v.oracle = o
	return v
}

// Repairs reports how many auto-fixes the validator applied.
func (v *Validator) Repairs() int { return v.repairs }

func (v *Validator) Validate(rules []DetectionRule) []DetectionRule {
	out := make([]DetectionRule, len(rules))
	copy(out, rules)

	for i := range out {
		v.checkPattern(&out[i])
		v.checkConsistency(out[i])
	}
	return v.dedupe(out)
}

// checkPattern handles broad-pattern detection and import-verification
// injection. A rule is never dropped here: either a confident repair is
// applied or a warning is recorded.
func (v *Validator) checkPattern(r *DetectionRule) {
	broad := false
	if !r.Condition.IsCombo() && r.Condition.Provider == ProviderTextual {
		broad = isBroadPattern(r.Condition.Pattern)
	}

	if _, known := genericImportPackage(r.SourceConstruct); known {
		importCheck := importVerification(r.SourceConstruct)
		if !hasCondition(r.Condition, importCheck) {
			kind := "import_injected"
			rationale := fmt.Sprintf("generic construct %q: injected import verification for its conventional package", r.SourceConstruct)
			if broad {
				kind = "rule_upgraded"
				rationale = fmt.Sprintf("broad textual pattern %q on a known generic name: upgraded to import+usage combo", r.Condition.Pattern)
			}
			r.Condition = injectImportCheck(r.Condition, importCheck)
			v.repairs++
			v.rep.AddDecision(kind, "validate", r.RuleID, rationale, "info")
		}
		return
	}

	if broad {
		// No safe auto-fix without a known package; report and leave the
		// rule unchanged.
		v.rep.AddDecision("broad_pattern", "validate", r.RuleID,
			fmt.Sprintf("textual pattern %q is short and unanchored; expect false positives", r.Condition.Pattern), "warning")
	}
}

// checkConsistency cross-checks the complexity tier against the numeric
// effort score. Inconsistency is only ever a warning.
func (v *Validator) checkConsistency(r DetectionRule) {
	min, max := effortRangeFor(r.Tier)
	if r.Effort < min || r.Effort > max {
		v.rep.AddDecision("effort_mismatch", "validate", r.RuleID,
			fmt.Sprintf("complexity tier %s with effort %d is outside the expected %d-%d range", r.Tier, r.Effort, min, max), "warning")
	}
}

// dedupe collapses rules with structurally identical condition trees
// (child order normalized). The earliest rule ID survives with the union
// of links, regardless of input order: loaded rule sets arrive in file
// order rather than ID order. Freed IDs are never reused, so gaps in the
// sequence are expected after a collapse.
func (v *Validator) dedupe(rules []DetectionRule) []DetectionRule {
	slot := map[string]int{}
	var out []DetectionRule
	for _, r := range rules {
		key := r.Condition.Canonical()
		if i, seen := slot[key]; seen {
			links := unionRuleLinks(out[i].Links, r.Links)
			dropped := r.RuleID
			if r.RuleID < out[i].RuleID {
				dropped = out[i].RuleID
				out[i] = r
			}
			out[i].Links = links
			v.repairs++
			v.rep.AddDecision("duplicate_collapsed", "validate", dropped,
				fmt.Sprintf("condition identical to %s; collapsed, links merged", out[i].RuleID), "info")
			continue
		}
		slot[key] = len(out)
		out = append(out, r)
	}
	return out
}

// AlignDescriptions asks the oracle whether each rule's description
// matches what its condition detects. Mismatches are reported with the
// suggested wording but never auto-applied.
func (v *Validator) AlignDescriptions(ctx context.Context, rules []DetectionRule) {
	if v.oracle == nil {
		return
	}
	for _, r := range rules {
		prompt := fmt.Sprintf(`A static-analysis rule has this description:
%q

Its detection condition is:
%s

Does the description accurately characterize what the condition detects?
Respond with JSON: {"aligned": true/false, "suggested_description": ""}`,
			r.Description, r.Condition.Canonical())

		resp, err := v.oracle.Complete(ctx, llm.CompletionRequest{Prompt: prompt, ForceJSON: true})
		if err != nil {
			v.rep.AddDecision("alignment_check_failed", "validate", r.RuleID, err.Error(), "info")
			continue
		}
		var verdict struct {
			Aligned   bool   `json:"aligned"`
			Suggested string `json:"suggested_description"`
		}
		if err := json.Unmarshal([]byte(llm.CleanJSONOutput(resp)), &verdict); err != nil {
			v.rep.AddDecision("alignment_check_failed", "validate", r.RuleID, "unparseable verdict: "+err.Error(), "info")
			continue
		}
		if !verdict.Aligned {
			v.rep.AddDecision("description_mismatch", "validate", r.RuleID,
				"description may not match condition; suggested: "+strings.TrimSpace(verdict.Suggested), "warning")
		}
	}
}

func unionRuleLinks(a, b []pattern.Link) []pattern.Link {
	seen := map[string]bool{}
	var out []pattern.Link
	for _, l := range append(append([]pattern.Link{}, a...), b...) {
		if l.URL == "" || seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}

// hasCondition reports whether cond is, or contains as a direct child,
// a condition structurally equal to want. This is what makes injection
// idempotent.
func hasCondition(cond, want Condition) bool {
	if cond.Canonical() == want.Canonical() {
		return true
	}
	for _, child := range cond.Children {
		if child.Canonical() == want.Canonical() {
			return true
		}
	}
	return false
}

// injectImportCheck adds the import verification as an AND sibling: a
// single condition is wrapped into a combo, an existing AND combo gets
// the check prepended.
func injectImportCheck(cond, importCheck Condition) Condition {
	if cond.IsCombo() && cond.Op == OpAnd {
		cond.Children = append([]Condition{importCheck}, cond.Children...)
		return cond
	}
	return And(importCheck, cond)
}

// effortRangeFor is the loose band each tier is expected to stay in.
// Bands overlap on purpose: only clear outliers are worth a warning.
func effortRangeFor(tier pattern.ComplexityTier) (int, int) {
	switch tier {
	case pattern.TierTrivial:
		return 1, 3
	case pattern.TierLow:
		return 1, 4
	case pattern.TierMedium:
		return 3, 7
	case pattern.TierHigh:
		return 5, 9
	case pattern.TierExpert:
		return 7, 10
	default:
		return 1, 10
	}
}
