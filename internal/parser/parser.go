// Package parser wraps tree-sitter parsing behind a lazy per-language
// registry. One Parser is shared by a whole scan; trees are owned by the
// callers that request them.
package parser

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/andersk/semgrep/internal/types"
)

// Parser parses source content into tree-sitter trees, initializing each
// language's grammar on first use.
type Parser struct {
	mu      sync.Mutex
	parsers map[types.Language]*tree_sitter.Parser
}

// New creates an empty parser registry.
func New() *Parser {
	return &Parser{parsers: make(map[types.Language]*tree_sitter.Parser)}
}

// Supports reports whether a grammar is available for lang.
func (p *Parser) Supports(lang types.Language) bool {
	_, ok := languageFactories[lang]
	return ok
}

// Parse parses content under the given language. The returned tree must
// be closed by the caller. tree-sitter is error-tolerant: malformed
// source still yields a tree containing ERROR nodes, which is the right
// behavior for matching patterns inside half-broken files.
func (p *Parser) Parse(content []byte, lang types.Language) (*tree_sitter.Tree, error) {
	parser, err := p.parserFor(lang)
	if err != nil {
		return nil, err
	}

	// tree-sitter parsers are stateful; serialize access per registry.
	p.mu.Lock()
	tree := parser.Parse(content, nil)
	p.mu.Unlock()

	if tree == nil || tree.RootNode() == nil {
		return nil, fmt.Errorf("parsing produced no tree for language %s", lang)
	}
	return tree, nil
}

func (p *Parser) parserFor(lang types.Language) (*tree_sitter.Parser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if parser, ok := p.parsers[lang]; ok {
		return parser, nil
	}
	factory, ok := languageFactories[lang]
	if !ok {
		return nil, fmt.Errorf("no grammar for language %s", lang)
	}
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(factory()); err != nil {
		return nil, fmt.Errorf("initializing %s grammar: %w", lang, err)
	}
	p.parsers[lang] = parser
	return parser, nil
}

// NodeText returns the source text covered by a node.
func NodeText(node *tree_sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// NodeSpan converts a node's extent into a Span.
func NodeSpan(node *tree_sitter.Node) types.Span {
	start, end := node.StartPosition(), node.EndPosition()
	return types.Span{
		Start:      int(node.StartByte()),
		End:        int(node.EndByte()),
		StartPoint: types.Point{Row: int(start.Row), Column: int(start.Column)},
		EndPoint:   types.Point{Row: int(end.Row), Column: int(end.Column)},
	}
}
