package emit

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rulegen/internal/pattern"
	"rulegen/internal/rules"
)

// ruleYAML is the analyzer file format. This shape is consumed by an
// external, independently versioned engine and must stay stable.
type ruleYAML struct {
	RuleID      string         `yaml:"ruleID"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	Effort      int            `yaml:"effort"`
	Labels      []string       `yaml:"labels,omitempty"`
	When        map[string]any `yaml:"when"`
	Message     string         `yaml:"message"`
	Links       []linkYAML     `yaml:"links,omitempty"`
}

type linkYAML struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title,omitempty"`
}

type rulesetYAML struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Labels      []string `yaml:"labels,omitempty"`
}

// Emitter serializes the final rule set, partitioned by concern group,
// into one YAML file per concern plus a ruleset metadata file.
type Emitter struct {
	dir        string
	sourceTech string
	targetTech string
	prefix     string
	symbolLang string
}

func NewEmitter(dir, sourceTech, targetTech, rulePrefix, symbolLang string) *Emitter {
	return &Emitter{
		dir:        dir,
		sourceTech: sourceTech,
		targetTech: targetTech,
		prefix:     rulePrefix,
		symbolLang: symbolLang,
	}
}

// Emit writes the rule files and returns their paths. Concern groups
// keep first-seen order, which is deterministic because rules arrive in
// rule-ID order.
func (e *Emitter) Emit(ruleSet []rules.DetectionRule) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, err
	}

	groups := map[string][]rules.DetectionRule{}
	var order []string
	for _, r := range ruleSet {
		concern := r.ConcernGroup
		if concern == "" {
			concern = "general"
		}
		if _, seen := groups[concern]; !seen {
			order = append(order, concern)
		}
		groups[concern] = append(groups[concern], r)
	}

	var files []string
	written := map[string]bool{}
	for _, concern := range order {
		entries := make([]ruleYAML, 0, len(groups[concern]))
		for _, r := range groups[concern] {
			entries = append(entries, e.toYAML(r))
		}
		path := filepath.Join(e.dir, fmt.Sprintf("%s-%s.yaml", e.prefix, concern))
		if err := writeYAML(path, entries); err != nil {
			return nil, err
		}
		files = append(files, path)
		written[filepath.Base(path)] = true
	}

	// Re-emitting over an existing directory (lint --write) can empty a
	// concern group; its old file must not survive.
	stale, err := filepath.Glob(filepath.Join(e.dir, e.prefix+"-*.yaml"))
	if err != nil {
		return nil, err
	}
	for _, path := range stale {
		if !written[filepath.Base(path)] {
			if err := os.Remove(path); err != nil {
				return nil, err
			}
		}
	}

	meta := rulesetYAML{
		Name:        e.prefix,
		Description: fmt.Sprintf("Generated rules for migrating from %s to %s", e.sourceTech, e.targetTech),
		Labels: []string{
			"konveyor.io/source=" + pattern.Slugify(e.sourceTech),
			"konveyor.io/target=" + pattern.Slugify(e.targetTech),
		},
	}
	metaPath := filepath.Join(e.dir, "ruleset.yaml")
	if err := writeYAML(metaPath, meta); err != nil {
		return nil, err
	}
	return append(files, metaPath), nil
}

func (e *Emitter) toYAML(r rules.DetectionRule) ruleYAML {
	links := make([]linkYAML, 0, len(r.Links))
	for _, l := range r.Links {
		links = append(links, linkYAML{URL: l.URL, Title: l.Title})
	}
	return ruleYAML{
		RuleID:      r.RuleID,
		Description: r.Description,
		Category:    string(r.Category),
		Effort:      r.Effort,
		Labels: []string{
			"konveyor.io/source=" + pattern.Slugify(e.sourceTech),
			"konveyor.io/target=" + pattern.Slugify(e.targetTech),
			"complexity=" + string(r.Tier),
		},
		When:    conditionYAML(r.Condition, e.symbolLang),
		Message: r.Message,
		Links:   links,
	}
}

func conditionYAML(c rules.Condition, symbolLang string) map[string]any {
	if c.IsCombo() {
		children := make([]map[string]any, 0, len(c.Children))
		for _, child := range c.Children {
			children = append(children, conditionYAML(child, symbolLang))
		}
		return map[string]any{string(c.Op): children}
	}
	if c.Provider == rules.ProviderSymbolic {
		lang := symbolLang
		if lang == "" {
			lang = "java"
		}
		inner := map[string]any{"pattern": c.Pattern}
		if c.Location != "" {
			inner["location"] = c.Location
		}
		return map[string]any{lang + ".referenced": inner}
	}
	inner := map[string]any{"pattern": c.Pattern}
	if c.ScopeFilter != "" {
		inner["filePattern"] = c.ScopeFilter
	}
	return map[string]any{"builtin.filecontent": inner}
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
