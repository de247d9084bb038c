package engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	rerr "github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/matcher"
	"github.com/andersk/semgrep/internal/metavar"
	"github.com/andersk/semgrep/internal/rule"
	"github.com/andersk/semgrep/internal/types"
)

// Finding is one reported match of one rule: where it is, what it says,
// and the bindings that produced it. Lines holds the source line the
// match starts on. Fingerprint identifies the finding across runs for
// deduplication and baselines.
type Finding struct {
	RuleID      string           `json:"rule_id"`
	Message     string           `json:"message"`
	Severity    types.Severity   `json:"severity"`
	Path        string           `json:"path"`
	Span        types.Span       `json:"span"`
	Lines       string           `json:"lines,omitempty"`
	Bindings    metavar.Bindings `json:"bindings,omitempty"`
	Fingerprint uint64           `json:"fingerprint"`
}

// Result is the outcome of evaluating one rule against one target:
// findings, the non-fatal errors collected along the way, and the
// explanation tree when explanations are enabled.
type Result struct {
	Findings    []Finding
	Errors      []*rerr.RuleError
	Explanation *Explanation
}

// EvalRule evaluates a rule's formula against a target and renders the
// surviving ranges as findings. A returned error means evaluation was
// aborted for this rule/target pair (malformed formula, timeout);
// recoverable problems are collected in Result.Errors instead.
func (e *Engine) EvalRule(ctx context.Context, r *rule.Rule, t *matcher.Target) (*Result, error) {
	state := &evalState{
		ctx:    ctx,
		rule:   r,
		target: t,
		errs:   &rerr.ErrorSet{},
	}

	ranges, explanation, err := e.evalFormula(state, r.Formula)
	if err != nil {
		if re, ok := err.(*rerr.RuleError); ok {
			return nil, re.WithRule(r.ID).WithPath(t.Path)
		}
		return nil, rerr.New(rerr.KindMatching, err).WithRule(r.ID).WithPath(t.Path)
	}

	result := &Result{Explanation: explanation}
	seen := make(map[uint64]bool, len(ranges))
	for _, rng := range ranges {
		f := Finding{
			RuleID:   r.ID,
			Message:  rng.Bindings.Interpolate(r.Message),
			Severity: r.Severity,
			Path:     t.Path,
			Span:     rng.Span,
			Lines:    sourceLine(t.Content, rng.Span.Start),
			Bindings: rng.Bindings,
		}
		f.Fingerprint = fingerprint(f)
		if seen[f.Fingerprint] {
			continue
		}
		seen[f.Fingerprint] = true
		result.Findings = append(result.Findings, f)
	}

	for _, collected := range state.errs.Errors() {
		result.Errors = append(result.Errors, collected.WithRule(r.ID).WithPath(t.Path))
	}
	e.trace("rule %s on %s: %d findings, %d errors", r.ID, t.Path, len(result.Findings), len(result.Errors))
	return result, nil
}

// sourceLine returns the full source line containing the byte offset,
// without its newline.
func sourceLine(content []byte, offset int) string {
	if offset < 0 || offset > len(content) {
		return ""
	}
	start := bytes.LastIndexByte(content[:offset], '\n') + 1
	end := bytes.IndexByte(content[offset:], '\n')
	if end < 0 {
		end = len(content)
	} else {
		end += offset
	}
	return strings.TrimRight(string(content[start:end]), "\r")
}

// fingerprint hashes the identity of a finding: rule, file, span and the
// interpolated message. Distinct bindings over the same span with the
// same message collapse into one finding.
func fingerprint(f Finding) uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00%s", f.RuleID, f.Path, f.Span.Start, f.Span.End, f.Message)
	return h.Sum64()
}
