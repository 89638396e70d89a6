package snippet

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"

	"rulegen/internal/pattern"
)

// Node types that pin a snippet to a structural location, per grammar.
var javaNodeHints = map[string]pattern.LocationHint{
	"import_declaration": pattern.LocationImport,
	"marker_annotation":  pattern.LocationAnnotation,
	"annotation":         pattern.LocationAnnotation,
	"method_invocation":  pattern.LocationMethodCall,
	"type_identifier":    pattern.LocationTypeReference,
}

var jsNodeHints = map[string]pattern.LocationHint{
	"import_statement": pattern.LocationImport,
	"decorator":        pattern.LocationAnnotation,
	"call_expression":  pattern.LocationMethodCall,
	"jsx_attribute":    pattern.LocationAttributeUsage,
}

// hintPriority orders competing hints within one snippet: an import line
// is more telling than the call it enables.
var hintPriority = map[pattern.LocationHint]int{
	pattern.LocationImport:         5,
	pattern.LocationAnnotation:     4,
	pattern.LocationMethodCall:     3,
	pattern.LocationAttributeUsage: 2,
	pattern.LocationTypeReference:  1,
}

// Classifier infers a LocationHint from an example code fragment when
// the oracle omits or mangles the field. Java and JavaScript cover the
// migration guides this pipeline targets; anything unparseable is
// free-text.
type Classifier struct {
	mu sync.Mutex
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(code string) pattern.LocationHint {
	code = strings.TrimSpace(code)
	if code == "" {
		return pattern.LocationFreeText
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	type candidate struct {
		lang  *sitter.Language
		hints map[string]pattern.LocationHint
	}
	// JavaScript first: its grammar tolerates expression snippets that
	// java's file-level grammar rejects.
	candidates := []candidate{
		{javascript.GetLanguage(), jsNodeHints},
		{java.GetLanguage(), javaNodeHints},
	}
	if looksLikeJava(code) {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}

	for _, cand := range candidates {
		if hint, ok := classifyWith(cand.lang, cand.hints, code); ok {
			return hint
		}
	}
	return pattern.LocationFreeText
}

func classifyWith(lang *sitter.Language, hints map[string]pattern.LocationHint, code string) (pattern.LocationHint, bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil || tree == nil {
		return "", false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return "", false
	}

	best := pattern.LocationHint("")
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if hint, ok := hints[n.Type()]; ok {
			if hintPriority[hint] > hintPriority[best] {
				best = hint
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)

	if best == "" {
		return "", false
	}
	return best, true
}

func looksLikeJava(code string) bool {
	for _, marker := range []string{"import java", "import javax", "import jakarta", "@Override", "public class", "void "} {
		if strings.Contains(code, marker) {
			return true
		}
	}
	return false
}
