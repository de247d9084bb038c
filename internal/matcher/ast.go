package matcher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/andersk/semgrep/internal/metavar"
	"github.com/andersk/semgrep/internal/parser"
	"github.com/andersk/semgrep/internal/rule"
	"github.com/andersk/semgrep/internal/types"
)

// Metavariables and ellipses are not valid syntax in most grammars, so
// the pattern source is rewritten before parsing: $NAME becomes the
// identifier sgmv_NAME and ... becomes sgdots_. Both spellings are plain
// identifiers in every supported language, which lets one grammar parse
// both patterns and targets. The rewrite is reversed when comparing leaf
// text.
const ellipsisIdent = "sgdots_"

var (
	metavarToken  = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*|\d+)`)
	encodedMvName = regexp.MustCompile(`^sgmv_([A-Z_][A-Z0-9_]*|\d+)$`)
)

func encodePattern(src string) string {
	s := metavarToken.ReplaceAllString(src, "sgmv_${1}")
	return strings.ReplaceAll(s, "...", ellipsisIdent)
}

func decodeText(s string) string {
	s = strings.ReplaceAll(s, ellipsisIdent, "...")
	return regexp.MustCompile(`sgmv_([A-Z_][A-Z0-9_]*|\d+)`).ReplaceAllString(s, "$$${1}")
}

// statementWrappers embed a bare statement or expression in enough
// context to parse cleanly. Tried in order when the pattern does not
// parse on its own; the matcher then descends back to the wrapped part.
var statementWrappers = map[types.Language][]string{
	types.LangGo: {
		"package sgwrap\nfunc sgwrap() {\n%s\n}",
		"package sgwrap\n%s",
	},
	types.LangJava: {
		"class SgWrap {\nvoid sgwrap() {\n%s\n}\n}",
		"class SgWrap {\n%s\n}",
	},
	types.LangCSharp: {
		"class SgWrap {\nvoid sgwrap() {\n%s\n}\n}",
		"class SgWrap {\n%s\n}",
	},
	types.LangC:   {"void sgwrap() {\n%s\n}"},
	types.LangCpp: {"void sgwrap() {\n%s\n}"},
	types.LangRust: {
		"fn sgwrap() {\n%s\n}",
	},
	types.LangPHP: {"<?php\n%s"},
	types.LangZig: {"fn sgwrap() void {\n%s\n}"},
}

// blockKinds are the node kinds wrappers introduce around the pattern.
var blockKinds = map[string]bool{
	"block":                  true,
	"compound_statement":     true,
	"statement_block":        true,
	"declaration_list":       true,
	"class_body":             true,
	"field_declaration_list": true,
}

// compiledPattern is a pattern parsed and reduced to the node sequence to
// match. A single-node pattern matches individual target nodes; a
// multi-node pattern matches runs of consecutive siblings.
type compiledPattern struct {
	source []byte
	tree   *tree_sitter.Tree
	roots  []tree_sitter.Node
}

type astMatcher struct {
	parser *parser.Parser

	mu       sync.Mutex
	compiled map[patternKey]*compiledPattern
	errors   map[patternKey]error
}

type patternKey struct {
	source string
	lang   types.Language
}

func newASTMatcher(p *parser.Parser) *astMatcher {
	return &astMatcher{
		parser:   p,
		compiled: make(map[patternKey]*compiledPattern),
		errors:   make(map[patternKey]error),
	}
}

func (m *astMatcher) match(pat *rule.Pattern, t *Target) ([]RawMatch, error) {
	compiled, err := m.compile(pat.Source, t.Lang)
	if err != nil {
		return nil, err
	}

	tree, err := t.Tree(m.parser)
	if err != nil {
		return nil, err
	}

	run := &matchRun{
		patternSource: compiled.source,
		target:        t,
	}
	run.walk(compiled.roots, tree.RootNode())
	return run.dedup(pat.ID), nil
}

// compile parses the pattern source under lang, memoizing per (source,
// lang) so a pattern shared across files is parsed once.
func (m *astMatcher) compile(source string, lang types.Language) (*compiledPattern, error) {
	key := patternKey{source: source, lang: lang}

	m.mu.Lock()
	if c, ok := m.compiled[key]; ok {
		m.mu.Unlock()
		return c, nil
	}
	if err, ok := m.errors[key]; ok {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	c, err := m.parsePattern(source, lang)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.errors[key] = err
		return nil, err
	}
	m.compiled[key] = c
	return c, nil
}

func (m *astMatcher) parsePattern(source string, lang types.Language) (*compiledPattern, error) {
	encoded := encodePattern(source)

	// Bare fragment first, then the language's wrappers. The first parse
	// without errors wins; if all have errors, keep the bare parse and
	// match what tree-sitter recovered.
	candidates := []string{encoded}
	for _, w := range statementWrappers[lang] {
		candidates = append(candidates, fmt.Sprintf(w, encoded))
	}

	var fallback *compiledPattern
	for i, candidate := range candidates {
		content := []byte(candidate)
		tree, err := m.parser.Parse(content, lang)
		if err != nil {
			return nil, err
		}
		roots := patternRoots(tree.RootNode(), i > 0)
		if len(roots) == 0 {
			tree.Close()
			continue
		}
		c := &compiledPattern{source: content, tree: tree, roots: roots}
		if !tree.RootNode().HasError() {
			if fallback != nil {
				fallback.tree.Close()
			}
			return c, nil
		}
		if fallback == nil {
			fallback = c
		} else {
			tree.Close()
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("pattern %q does not parse as %s", source, lang)
}

// containerKinds are the file and block level nodes whose children form a
// pattern sequence rather than a structure to match. ERROR is included so
// recovered parses of bare fragments still yield something usable.
var containerKinds = map[string]bool{
	"module":           true,
	"source_file":      true,
	"program":          true,
	"translation_unit": true,
	"ERROR":            true,
}

// patternRoots reduces a parsed pattern tree to the nodes to match.
// Container and wrapper scaffolding is peeled off: a lone statement
// becomes its expression, multiple statements become a sequence matched
// against sibling runs. Structural nodes below that level are kept whole.
func patternRoots(root *tree_sitter.Node, wrapped bool) []tree_sitter.Node {
	node := *root
	if wrapped {
		block, ok := innermostBlock(root)
		if !ok {
			return nil
		}
		node = block
	}

	for containerKinds[node.Kind()] || blockKinds[node.Kind()] {
		kids := namedChildren(&node)
		switch len(kids) {
		case 0:
			return nil
		case 1:
			node = kids[0]
		default:
			return kids
		}
	}
	if node.Kind() == "expression_statement" {
		if kids := namedChildren(&node); len(kids) == 1 {
			node = kids[0]
		}
	}
	return []tree_sitter.Node{node}
}

func innermostBlock(root *tree_sitter.Node) (tree_sitter.Node, bool) {
	var found *tree_sitter.Node
	var visit func(n tree_sitter.Node)
	visit = func(n tree_sitter.Node) {
		if blockKinds[n.Kind()] {
			cp := n
			found = &cp
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			visit(*n.NamedChild(i))
		}
	}
	visit(*root)
	if found == nil {
		return tree_sitter.Node{}, false
	}
	return *found, true
}

// matchRun holds the state of matching one compiled pattern against one
// target tree.
type matchRun struct {
	patternSource []byte
	target        *Target
	matches       []RawMatch
}

func (r *matchRun) walk(roots []tree_sitter.Node, node *tree_sitter.Node) {
	if len(roots) == 1 {
		if env, ok := r.matchNode(&roots[0], node, metavar.Bindings{}); ok {
			r.matches = append(r.matches, RawMatch{
				Span:     parser.NodeSpan(node),
				Bindings: env,
			})
		}
	} else {
		r.matchSiblingRuns(roots, node)
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		r.walk(roots, node.NamedChild(i))
	}
}

// matchSiblingRuns matches a multi-node pattern against consecutive named
// children of node, anchored at each starting position.
func (r *matchRun) matchSiblingRuns(roots []tree_sitter.Node, node *tree_sitter.Node) {
	kids := namedChildrenSkippingComments(node)
	for start := 0; start < len(kids); start++ {
		env, consumed, ok := r.matchSeqPrefix(roots, kids[start:], metavar.Bindings{})
		if !ok || consumed == 0 {
			continue
		}
		first := kids[start]
		last := kids[start+consumed-1]
		span := parser.NodeSpan(&first)
		span.End = int(last.EndByte())
		end := last.EndPosition()
		span.EndPoint = types.Point{Row: int(end.Row), Column: int(end.Column)}
		r.matches = append(r.matches, RawMatch{Span: span, Bindings: env})
	}
}

// matchSeqPrefix matches the full pattern sequence against a prefix of
// nodes, returning how many target nodes it consumed. A trailing ellipsis
// consumes greedily nothing here; the shortest completion is preferred so
// spans stay tight.
func (r *matchRun) matchSeqPrefix(pats []tree_sitter.Node, nodes []tree_sitter.Node, env metavar.Bindings) (metavar.Bindings, int, bool) {
	if len(pats) == 0 {
		return env, 0, true
	}
	head := &pats[0]
	if r.isEllipsis(head) {
		for skip := 0; skip <= len(nodes); skip++ {
			if out, consumed, ok := r.matchSeqPrefix(pats[1:], nodes[skip:], env); ok {
				return out, skip + consumed, true
			}
		}
		return nil, 0, false
	}
	if len(nodes) == 0 {
		return nil, 0, false
	}
	env2, ok := r.matchNode(head, &nodes[0], env)
	if !ok {
		return nil, 0, false
	}
	out, consumed, ok := r.matchSeqPrefix(pats[1:], nodes[1:], env2)
	if !ok {
		return nil, 0, false
	}
	return out, consumed + 1, true
}

// matchNode structurally matches one pattern node against one target
// node, threading bindings. Bindings are copied before extension so
// failed branches leave the caller's environment untouched.
func (r *matchRun) matchNode(pat, node *tree_sitter.Node, env metavar.Bindings) (metavar.Bindings, bool) {
	pText := parser.NodeText(pat, r.patternSource)

	if name, ok := metavarName(pText); ok {
		return r.bind(env, name, node)
	}
	if pText == ellipsisIdent {
		return env, true
	}

	if pat.Kind() != node.Kind() {
		return nil, false
	}

	// String literals compare atomically. Grammars that split strings
	// into quote and content children would otherwise defeat the
	// any-string rule for "..." bodies.
	if strings.Contains(pat.Kind(), "string") {
		return env, r.leafMatches(pText, node)
	}

	pKids := childrenSkippingComments(pat)
	nKids := childrenSkippingComments(node)

	if len(pKids) == 0 {
		return env, r.leafMatches(pText, node)
	}

	out, consumed, ok := r.matchChildSeq(pKids, nKids, env)
	if !ok || consumed != len(nKids) {
		return nil, false
	}
	return out, true
}

// matchChildSeq is matchSeqPrefix over full child lists, including
// anonymous children so that operators and keywords distinguish
// otherwise same-kinded nodes.
func (r *matchRun) matchChildSeq(pats, nodes []tree_sitter.Node, env metavar.Bindings) (metavar.Bindings, int, bool) {
	if len(pats) == 0 {
		return env, 0, true
	}
	head := &pats[0]
	if r.isEllipsis(head) {
		for skip := 0; skip <= len(nodes); skip++ {
			if out, consumed, ok := r.matchChildSeq(pats[1:], nodes[skip:], env); ok {
				return out, skip + consumed, true
			}
		}
		return nil, 0, false
	}
	if len(nodes) == 0 {
		return nil, 0, false
	}
	env2, ok := r.matchNode(head, &nodes[0], env)
	if !ok {
		return nil, 0, false
	}
	out, consumed, ok := r.matchChildSeq(pats[1:], nodes[1:], env2)
	if !ok {
		return nil, 0, false
	}
	return out, consumed + 1, true
}

func (r *matchRun) bind(env metavar.Bindings, name string, node *tree_sitter.Node) (metavar.Bindings, bool) {
	value := metavar.NewValue(
		parser.NodeText(node, r.target.Content),
		parser.NodeSpan(node),
		r.target.Lang,
	)
	if existing, ok := env.Lookup(name); ok {
		if !existing.Equal(value) {
			return nil, false
		}
		return env, true
	}
	out := env.Clone()
	out[name] = value
	return out, true
}

// leafMatches compares a leaf pattern node against target text. A string
// literal pattern whose body is a lone ellipsis matches any string of
// the same kind.
func (r *matchRun) leafMatches(pText string, node *tree_sitter.Node) bool {
	decoded := decodeText(pText)
	if isAnyStringPattern(decoded) {
		return true
	}
	return decoded == parser.NodeText(node, r.target.Content)
}

func isAnyStringPattern(s string) bool {
	if len(s) < 2 {
		return false
	}
	quote := s[0]
	if quote != '"' && quote != '\'' && quote != '`' {
		return false
	}
	return s[len(s)-1] == quote && s[1:len(s)-1] == "..."
}

func (r *matchRun) isEllipsis(n *tree_sitter.Node) bool {
	return parser.NodeText(n, r.patternSource) == ellipsisIdent
}

func metavarName(text string) (string, bool) {
	m := encodedMvName.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return "$" + m[1], true
}

func namedChildren(n *tree_sitter.Node) []tree_sitter.Node {
	count := n.NamedChildCount()
	kids := make([]tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		kids = append(kids, *n.NamedChild(i))
	}
	return kids
}

func namedChildrenSkippingComments(n *tree_sitter.Node) []tree_sitter.Node {
	var kids []tree_sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if strings.Contains(c.Kind(), "comment") {
			continue
		}
		kids = append(kids, *c)
	}
	return kids
}

// childrenSkippingComments returns all children, named and anonymous,
// minus comments. Anonymous children carry operators and keywords that
// named-only matching would conflate.
func childrenSkippingComments(n *tree_sitter.Node) []tree_sitter.Node {
	var kids []tree_sitter.Node
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if strings.Contains(c.Kind(), "comment") {
			continue
		}
		kids = append(kids, *c)
	}
	return kids
}

// dedup drops duplicate (span, bindings) matches. Single-child unwrapping
// means a sequence pattern and its lone element can both report the same
// occurrence.
func (r *matchRun) dedup(id types.PatternID) []RawMatch {
	seen := make(map[string]bool, len(r.matches))
	out := make([]RawMatch, 0, len(r.matches))
	for _, m := range r.matches {
		m.PatternID = id
		key := matchFingerprint(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Span.End < out[j].Span.End
	})
	return out
}

func matchFingerprint(m RawMatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d", m.Span.Start, m.Span.End)
	for _, name := range m.Bindings.Names() {
		v, _ := m.Bindings.Lookup(name)
		fmt.Fprintf(&b, "|%s=%d:%d", name, v.Span.Start, v.Span.End)
	}
	return b.String()
}
