package rules

import (
	"sort"
	"strings"

	"rulegen/internal/pattern"
)

// Provider names the detection mechanism of a leaf condition. Symbolic
// providers resolve identifiers through a language-aware index: precise,
// but they only confirm a symbol is reachable somewhere, not that it is
// used in the flagged way. Textual providers match regex against file
// content: they confirm usage context but know nothing about semantic
// scope. Combo rules exist to cover each one's blind spot.
type Provider string

const (
	ProviderSymbolic Provider = "symbolic"
	ProviderTextual  Provider = "textual"
)

type Op string

const (
	OpAnd Op = "and"
	OpOr  Op = "or"
)

// Condition is a tagged variant: a leaf (Provider set) or a combo
// (Op and at least two Children). Synthesis never nests deeper than two
// levels.
type Condition struct {
	// Leaf fields.
	Provider    Provider
	Pattern     string
	ScopeFilter string
	Location    string // symbolic leaves only: IMPORT, METHOD_CALL, ANNOTATION, TYPE

	// Combo fields.
	Op       Op
	Children []Condition
}

func (c Condition) IsCombo() bool { return len(c.Children) > 0 }

func Textual(pattern, scopeFilter string) Condition {
	return Condition{Provider: ProviderTextual, Pattern: pattern, ScopeFilter: scopeFilter}
}

func Symbolic(pattern, location string) Condition {
	return Condition{Provider: ProviderSymbolic, Pattern: pattern, Location: location}
}

func And(children ...Condition) Condition {
	return Condition{Op: OpAnd, Children: children}
}

// Canonical renders a stable signature of the condition tree. Children
// of and/or are sorted, so structurally identical conditions compare
// equal regardless of child order.
func (c Condition) Canonical() string {
	if !c.IsCombo() {
		return string(c.Provider) + "(" + c.Pattern + "|" + c.ScopeFilter + "|" + c.Location + ")"
	}
	parts := make([]string, 0, len(c.Children))
	for _, child := range c.Children {
		parts = append(parts, child.Canonical())
	}
	sort.Strings(parts)
	return string(c.Op) + "[" + strings.Join(parts, ",") + "]"
}

// DetectionRule is one emitted analyzer rule. Unlike MigrationPattern,
// rules may be mutated in place by the validator (condition upgraded,
// duplicates collapsed) before emission.
type DetectionRule struct {
	RuleID       string
	Description  string
	Condition    Condition
	Message      string
	Category     pattern.Category
	Effort       int
	Tier         pattern.ComplexityTier
	ConcernGroup string
	Links        []pattern.Link

	// SourceConstruct feeds the validator's dictionary checks; it is not
	// part of the emitted format.
	SourceConstruct string
}
