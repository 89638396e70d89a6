package pattern

import (
	"fmt"
	"strings"
)

// LocationHint classifies where a construct appears in code. It drives
// detection-provider choice during synthesis.
type LocationHint string

const (
	LocationImport         LocationHint = "import"
	LocationTypeReference  LocationHint = "type-reference"
	LocationMethodCall     LocationHint = "method-call"
	LocationAnnotation     LocationHint = "annotation"
	LocationAttributeUsage LocationHint = "attribute-usage"
	LocationConfigKey      LocationHint = "config-key"
	LocationFreeText       LocationHint = "free-text"
)

// ParseLocationHint accepts the hint spellings models actually produce.
func ParseLocationHint(s string) (LocationHint, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	switch LocationHint(normalized) {
	case LocationImport, LocationTypeReference, LocationMethodCall,
		LocationAnnotation, LocationAttributeUsage, LocationConfigKey, LocationFreeText:
		return LocationHint(normalized), true
	}
	return "", false
}

// Structural reports whether the hint names a language-structural
// location a symbolic provider can resolve.
func (h LocationHint) Structural() bool {
	switch h {
	case LocationImport, LocationTypeReference, LocationMethodCall, LocationAnnotation:
		return true
	}
	return false
}

// ComplexityTier is the estimated remediation difficulty, independent of
// the numeric effort score.
type ComplexityTier string

const (
	TierTrivial ComplexityTier = "trivial"
	TierLow     ComplexityTier = "low"
	TierMedium  ComplexityTier = "medium"
	TierHigh    ComplexityTier = "high"
	TierExpert  ComplexityTier = "expert"
)

func ParseComplexityTier(s string) ComplexityTier {
	switch ComplexityTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierTrivial:
		return TierTrivial
	case TierLow:
		return TierLow
	case TierHigh:
		return TierHigh
	case TierExpert:
		return TierExpert
	default:
		return TierMedium
	}
}

// Category is the migration necessity.
type Category string

const (
	CategoryMandatory Category = "mandatory"
	CategoryPotential Category = "potential"
	CategoryOptional  Category = "optional"
)

func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryMandatory:
		return CategoryMandatory, true
	case CategoryPotential:
		return CategoryPotential, true
	case CategoryOptional:
		return CategoryOptional, true
	}
	return "", false
}

// Link is a provenance reference back to the guide.
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// MigrationPattern is one extracted migration fact: an old construct,
// its replacement, and enough metadata to synthesize a detection rule.
// Instances are immutable once created; synthesis reads them and builds
// new rule values.
type MigrationPattern struct {
	SourceConstruct  string
	TargetConstruct  string
	LocationHint     LocationHint
	ComplexityTier   ComplexityTier
	EffortScore      int
	Category         Category
	Concern          string
	Rationale        string
	ExampleBefore    string
	ExampleAfter     string
	SourceReferences []Link

	// Provenance for deterministic ordering across concurrent chunks.
	ChunkIndex int
	Ordinal    int
}

// RawRecord is the loose shape decoded from oracle JSON before
// validation. Every field is optional at this stage; ParseRecord decides
// what is acceptable.
type RawRecord struct {
	SourceConstruct  string  `json:"source_construct"`
	TargetConstruct  string  `json:"target_construct"`
	LocationHint     string  `json:"location_hint"`
	ComplexityTier   string  `json:"complexity_tier"`
	EffortScore      float64 `json:"effort_score"`
	Category         string  `json:"category"`
	Concern          string  `json:"concern"`
	Rationale        string  `json:"rationale"`
	ExampleBefore    string  `json:"example_before"`
	ExampleAfter     string  `json:"example_after"`
	SourceReferences []Link  `json:"source_references"`
}

// ParseRecord converts a raw oracle record into a validated pattern.
// A failed parse rejects only this record, never its siblings.
// LocationHint is left empty when the oracle value is missing or
// unrecognized so the caller can infer one from the example snippet.
func ParseRecord(raw RawRecord) (MigrationPattern, error) {
	source := strings.TrimSpace(raw.SourceConstruct)
	if source == "" {
		return MigrationPattern{}, fmt.Errorf("source_construct is required")
	}

	category, ok := ParseCategory(raw.Category)
	if !ok {
		return MigrationPattern{}, fmt.Errorf("category %q is not one of mandatory/potential/optional", raw.Category)
	}

	effort := int(raw.EffortScore + 0.5)
	if effort < 1 || effort > 10 {
		return MigrationPattern{}, fmt.Errorf("effort_score %v outside [1,10]", raw.EffortScore)
	}

	hint, _ := ParseLocationHint(raw.LocationHint)

	return MigrationPattern{
		SourceConstruct:  source,
		TargetConstruct:  strings.TrimSpace(raw.TargetConstruct),
		LocationHint:     hint,
		ComplexityTier:   ParseComplexityTier(raw.ComplexityTier),
		EffortScore:      effort,
		Category:         category,
		Concern:          strings.TrimSpace(raw.Concern),
		Rationale:        strings.TrimSpace(raw.Rationale),
		ExampleBefore:    raw.ExampleBefore,
		ExampleAfter:     raw.ExampleAfter,
		SourceReferences: raw.SourceReferences,
	}, nil
}
