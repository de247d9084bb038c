// Package matcher implements the single-pattern matchers behind formula
// leaves: the structural AST matcher for ordinary patterns and the
// textual matcher for pattern-regex leaves. The Dispatcher in front of
// them memoizes results per (target, pattern id), so a pattern shared by
// several formula branches is matched once.
package matcher

import (
	"context"
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/andersk/semgrep/internal/metavar"
	"github.com/andersk/semgrep/internal/parser"
	"github.com/andersk/semgrep/internal/regex_analyzer"
	"github.com/andersk/semgrep/internal/rule"
	"github.com/andersk/semgrep/internal/types"
)

// RawMatch is one occurrence of one leaf pattern: the span it covers and
// the metavariable bindings it produced. Immutable once produced.
type RawMatch struct {
	PatternID types.PatternID
	Span      types.Span
	Bindings  metavar.Bindings
}

// Target is one body of source text being matched: a file on disk or a
// metavariable-bound fragment re-parsed under another language. The parse
// tree is built on first use and reused by every pattern of the target.
type Target struct {
	Path    string
	Content []byte
	Lang    types.Language

	key string

	mu       sync.Mutex
	tree     *tree_sitter.Tree
	parseErr error
	parsed   bool
}

// NewTarget wraps a file for matching.
func NewTarget(path string, content []byte, lang types.Language) *Target {
	return &Target{Path: path, Content: content, Lang: lang, key: path}
}

// NewFragmentTarget wraps a bound fragment for nested-formula matching.
// The span identifies the fragment within its parent, keeping cache keys
// distinct when one file binds several fragments.
func NewFragmentTarget(parent *Target, fragment string, span types.Span, lang types.Language) *Target {
	return &Target{
		Path:    parent.Path,
		Content: []byte(fragment),
		Lang:    lang,
		key:     fmt.Sprintf("%s#%d-%d@%s", parent.key, span.Start, span.End, lang),
	}
}

// Tree parses the target on first call and memoizes the result for the
// rest of the target's life.
func (t *Target) Tree(p *parser.Parser) (*tree_sitter.Tree, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.parsed {
		t.tree, t.parseErr = p.Parse(t.Content, t.Lang)
		t.parsed = true
	}
	return t.tree, t.parseErr
}

// Close releases the target's parse tree.
func (t *Target) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
		t.parsed = false
	}
}

// Dispatcher routes a pattern to the matcher for its kind and memoizes
// raw matches per (target, pattern id).
type Dispatcher struct {
	parser  *parser.Parser
	regexes *regex_analyzer.Cache
	ast     *astMatcher

	mu    sync.Mutex
	cache map[matchKey][]RawMatch
	lines map[string]*lineIndex
}

type matchKey struct {
	target string
	id     types.PatternID
}

// NewDispatcher creates a dispatcher over a shared parser registry.
func NewDispatcher(p *parser.Parser) *Dispatcher {
	return &Dispatcher{
		parser:  p,
		regexes: regex_analyzer.NewCache(regex_analyzer.DefaultCacheSize),
		ast:     newASTMatcher(p),
		cache:   make(map[matchKey][]RawMatch),
	}
}

// Match returns every occurrence of the pattern in the target. Results
// are memoized: repeated lookups for the same pattern on the same target
// are free, which is what makes lazy leaf lookup in the evaluator cheap.
func (d *Dispatcher) Match(ctx context.Context, pat *rule.Pattern, t *Target) ([]RawMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := matchKey{target: t.key, id: pat.ID}
	d.mu.Lock()
	if cached, ok := d.cache[key]; ok {
		d.mu.Unlock()
		return cached, nil
	}
	d.mu.Unlock()

	var matches []RawMatch
	var err error
	switch pat.Kind {
	case rule.KindRegex:
		matches, err = d.matchRegex(pat, t)
	case rule.KindAST:
		if d.parser.Supports(t.Lang) {
			matches, err = d.ast.match(pat, t)
		} else {
			// No grammar for this target: ordinary patterns degrade to
			// literal text search.
			matches = d.matchLiteral(pat, t)
		}
	default:
		err = fmt.Errorf("unknown pattern kind %d", pat.Kind)
	}
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cache[key] = matches
	d.mu.Unlock()
	return matches, nil
}
