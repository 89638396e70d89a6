package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"rulegen/internal/pattern"
	"rulegen/internal/rules"
)

// Meta is the ruleset-level metadata recovered from ruleset.yaml.
type Meta struct {
	Name       string
	SourceTech string
	TargetTech string
}

// LoadMeta reads the ruleset metadata file. The source and target techs
// come back as slugs, which is enough to re-emit the directory.
func LoadMeta(dir string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, "ruleset.yaml"))
	if err != nil {
		return Meta{}, err
	}
	var raw rulesetYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Meta{}, fmt.Errorf("parse ruleset.yaml: %w", err)
	}
	meta := Meta{Name: raw.Name}
	for _, label := range raw.Labels {
		if v, ok := strings.CutPrefix(label, "konveyor.io/source="); ok {
			meta.SourceTech = v
		}
		if v, ok := strings.CutPrefix(label, "konveyor.io/target="); ok {
			meta.TargetTech = v
		}
	}
	return meta, nil
}

// LoadRules reads previously emitted rule files back into memory so the
// validator can run standalone over an existing ruleset.
func LoadRules(dir string) ([]rules.DetectionRule, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	// The ruleset name is the filename prefix; knowing it lets concern
	// slugs that contain hyphens round-trip correctly.
	prefix := ""
	if data, err := os.ReadFile(filepath.Join(dir, "ruleset.yaml")); err == nil {
		var meta rulesetYAML
		if yaml.Unmarshal(data, &meta) == nil {
			prefix = meta.Name
		}
	}

	var out []rules.DetectionRule
	for _, path := range matches {
		if filepath.Base(path) == "ruleset.yaml" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var entries []ruleYAML
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		concern := concernFromFilename(path, prefix)
		for _, entry := range entries {
			cond, err := parseWhen(entry.When)
			if err != nil {
				return nil, fmt.Errorf("%s: rule %s: %w", path, entry.RuleID, err)
			}
			links := make([]pattern.Link, 0, len(entry.Links))
			for _, l := range entry.Links {
				links = append(links, pattern.Link{URL: l.URL, Title: l.Title})
			}
			out = append(out, rules.DetectionRule{
				RuleID:          entry.RuleID,
				Description:     entry.Description,
				Condition:       cond,
				Message:         entry.Message,
				Category:        pattern.Category(entry.Category),
				Effort:          entry.Effort,
				Tier:            tierFromLabels(entry.Labels),
				ConcernGroup:    concern,
				Links:           links,
				SourceConstruct: constructFromCondition(cond),
			})
		}
	}
	return out, nil
}

func parseWhen(when map[string]any) (rules.Condition, error) {
	if len(when) != 1 {
		return rules.Condition{}, fmt.Errorf("when clause must have exactly one key, got %d", len(when))
	}
	for key, value := range when {
		switch key {
		case "and", "or":
			items, ok := value.([]any)
			if !ok || len(items) < 2 {
				return rules.Condition{}, fmt.Errorf("%s requires a list of at least two conditions", key)
			}
			combo := rules.Condition{Op: rules.Op(key)}
			for _, item := range items {
				childMap, ok := toStringMap(item)
				if !ok {
					return rules.Condition{}, fmt.Errorf("invalid child condition under %s", key)
				}
				child, err := parseWhen(childMap)
				if err != nil {
					return rules.Condition{}, err
				}
				combo.Children = append(combo.Children, child)
			}
			return combo, nil
		case "builtin.filecontent":
			fields, _ := toStringMap(value)
			return rules.Textual(stringField(fields, "pattern"), stringField(fields, "filePattern")), nil
		default:
			if strings.HasSuffix(key, ".referenced") {
				fields, _ := toStringMap(value)
				return rules.Symbolic(stringField(fields, "pattern"), stringField(fields, "location")), nil
			}
			return rules.Condition{}, fmt.Errorf("unknown condition type %q", key)
		}
	}
	return rules.Condition{}, fmt.Errorf("empty when clause")
}

func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func concernFromFilename(path, prefix string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".yaml")
	if prefix != "" && strings.HasPrefix(base, prefix+"-") {
		return strings.TrimPrefix(base, prefix+"-")
	}
	if i := strings.LastIndex(base, "-"); i >= 0 && i+1 < len(base) {
		return base[i+1:]
	}
	return base
}

func tierFromLabels(labels []string) pattern.ComplexityTier {
	for _, l := range labels {
		if strings.HasPrefix(l, "complexity=") {
			return pattern.ParseComplexityTier(strings.TrimPrefix(l, "complexity="))
		}
	}
	return pattern.TierMedium
}

// constructFromCondition recovers an approximate source construct from
// the first textual pattern, enough for the validator's dictionary
// checks on loaded rules.
func constructFromCondition(c rules.Condition) string {
	if c.IsCombo() {
		for _, child := range c.Children {
			if s := constructFromCondition(child); s != "" {
				return s
			}
		}
		return ""
	}
	p := c.Pattern
	p = strings.TrimSuffix(p, `\(`)
	p = strings.ReplaceAll(p, `\`, "")
	return p
}
