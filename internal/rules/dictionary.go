package rules

import (
	"strings"
	"unicode/utf8"
)

// knownGenericConstructs maps identifier names that recur across many
// unrelated codebases to the package that conventionally provides them.
// A bare textual match on one of these produces false positives, and a
// bare symbolic lookup only proves the name resolves somewhere, so rules
// for them get an import cross-check.
var knownGenericConstructs = map[string]string{
	// React ecosystem
	"render":      "react-dom",
	"hydrate":     "react-dom",
	"findDOMNode": "react-dom",

	// PatternFly component and prop names
	"Button":   "@patternfly/react-core",
	"Modal":    "@patternfly/react-core",
	"Select":   "@patternfly/react-core",
	"Alert":    "@patternfly/react-core",
	"Card":     "@patternfly/react-core",
	"Label":    "@patternfly/react-core",
	"Text":     "@patternfly/react-core",
	"Title":    "@patternfly/react-core",
	"Wizard":   "@patternfly/react-core",
	"Form":     "@patternfly/react-core",
	"Checkbox": "@patternfly/react-core",
	"Radio":    "@patternfly/react-core",
	"Switch":   "@patternfly/react-core",
	"Tooltip":  "@patternfly/react-core",
	"Popover":  "@patternfly/react-core",
	"Chip":     "@patternfly/react-core",
	"isActive": "@patternfly/react-core",
	"isOpen":   "@patternfly/react-core",
	"Table":    "@patternfly/react-table",

	// Java/Jakarta annotations that appear in every enterprise codebase
	"Autowired": "org.springframework.beans.factory.annotation",
	"Inject":    "jakarta.inject",
	"Stateless": "jakarta.ejb",
	"Entity":    "jakarta.persistence",
	"Path":      "jakarta.ws.rs",
}

// commonWords are tokens too generic to detect on their own even when no
// conventional package is known for them.
var commonWords = map[string]bool{
	"active": true, "open": true, "value": true, "item": true,
	"data": true, "name": true, "type": true, "default": true,
	"config": true, "options": true, "label": true, "text": true,
	"title": true, "size": true, "variant": true, "disabled": true,
	"selected": true, "required": true, "component": true, "props": true,
}

// Tokens shorter than this, without any qualifying punctuation, are
// treated as too ambiguous for a bare single-condition rule.
const genericLengthThreshold = 10

// Textual leaf patterns shorter than this with no regex metacharacters
// are flagged as overly broad by the validator.
const broadPatternThreshold = 12

// genericImportPackage reports the conventional providing package for a
// generic construct name, keyed case-insensitively.
func genericImportPackage(construct string) (string, bool) {
	name := strings.TrimPrefix(strings.TrimSpace(construct), "@")
	if pkg, ok := knownGenericConstructs[name]; ok {
		return pkg, true
	}
	lower := strings.ToLower(name)
	for k, pkg := range knownGenericConstructs {
		if strings.ToLower(k) == lower {
			return pkg, true
		}
	}
	return "", false
}

// isGenericToken decides whether a source construct is too short or too
// common for a bare single-condition rule. Qualified names (dots,
// scopes, call syntax) are always specific enough.
func isGenericToken(construct string) bool {
	t := strings.TrimPrefix(strings.TrimSpace(construct), "@")
	if t == "" {
		return true
	}
	if strings.ContainsAny(t, "./:()<>") || strings.Contains(t, " ") {
		return false
	}
	if _, ok := genericImportPackage(t); ok {
		return true
	}
	if commonWords[strings.ToLower(t)] {
		return true
	}
	return utf8.RuneCountInString(t) < genericLengthThreshold
}

// isBroadPattern flags a textual pattern that would match far too much:
// short and without any anchoring metacharacters.
func isBroadPattern(p string) bool {
	if len(p) >= broadPatternThreshold {
		return false
	}
	return !strings.ContainsAny(p, `\^$[](){}|+*?.`)
}
