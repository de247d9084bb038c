// Package engine evaluates rule formulas over matched targets: the range
// algebra for AND/OR/NOT composition, metavariable condition filtering,
// focus narrowing, and the per-rule orchestration that turns surviving
// ranges into findings.
package engine

import (
	"github.com/andersk/semgrep/internal/matcher"
	"github.com/andersk/semgrep/internal/parser"
	"github.com/andersk/semgrep/internal/regex_analyzer"
)

// DefaultMaxNestingDepth bounds metavariable-pattern recursion.
const DefaultMaxNestingDepth = 8

// TraceFunc receives evaluation trace lines when configured. The engine
// never logs on its own; callers decide where traces go.
type TraceFunc func(format string, args ...interface{})

// Config carries the evaluation switches that older revisions kept in
// globals. One Config is shared by a whole scan; the zero value plus
// Normalize is a working default.
type Config struct {
	// ConstantPropagation makes regex, comparison and analyzer
	// conditions see the constant value of literal bindings instead of
	// their source spelling.
	ConstantPropagation bool

	// MaxNestingDepth caps metavariable-pattern recursion. Exceeding it
	// is collected as a nested error and the range is dropped.
	MaxNestingDepth int

	// Explanations records a per-operator tree of intermediate results
	// alongside findings.
	Explanations bool

	// Trace, when non-nil, receives one line per evaluation step.
	Trace TraceFunc
}

// Normalize fills unset fields with defaults.
func (c Config) Normalize() Config {
	if c.MaxNestingDepth <= 0 {
		c.MaxNestingDepth = DefaultMaxNestingDepth
	}
	return c
}

// Engine evaluates rules against targets. Safe for concurrent use: all
// mutable state lives in the per-call evaluation context or behind the
// dispatcher's own locking.
type Engine struct {
	cfg        Config
	parser     *parser.Parser
	dispatcher *matcher.Dispatcher
	regexes    *regex_analyzer.Cache
}

// New creates an engine over a shared parser registry.
func New(p *parser.Parser, cfg Config) *Engine {
	return &Engine{
		cfg:        cfg.Normalize(),
		parser:     p,
		dispatcher: matcher.NewDispatcher(p),
		regexes:    regex_analyzer.NewCache(regex_analyzer.DefaultCacheSize),
	}
}

func (e *Engine) trace(format string, args ...interface{}) {
	if e.cfg.Trace != nil {
		e.cfg.Trace(format, args...)
	}
}
