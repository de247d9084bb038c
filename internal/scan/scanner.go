package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/andersk/semgrep/internal/config"
	"github.com/andersk/semgrep/internal/engine"
	rerr "github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/matcher"
	"github.com/andersk/semgrep/internal/parser"
	"github.com/andersk/semgrep/internal/rule"
)

// Report is the outcome of one scan.
type Report struct {
	Findings []engine.Finding
	Errors   []*rerr.RuleError
	Stats    Stats
}

// Stats summarizes what a scan covered.
type Stats struct {
	FilesScanned int
	RulesLoaded  int
	Duration     time.Duration
}

// Scanner runs a rule set over a target tree.
type Scanner struct {
	cfg    *config.Config
	rules  []*rule.Rule
	engine *engine.Engine
}

// NewScanner loads the configured rule files and prepares an engine.
func NewScanner(cfg *config.Config) (*Scanner, error) {
	rules, err := LoadRules(cfg.RuleFiles)
	if err != nil {
		return nil, err
	}
	ecfg := engine.Config{
		ConstantPropagation: cfg.ConstantPropagation,
		MaxNestingDepth:     cfg.Limits.MaxNestingDepth,
		Explanations:        cfg.Output.Explanations,
	}
	if cfg.Verbose {
		ecfg.Trace = func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	return &Scanner{
		cfg:    cfg,
		rules:  rules,
		engine: engine.New(parser.New(), ecfg),
	}, nil
}

// Rules returns the loaded rule set.
func (s *Scanner) Rules() []*rule.Rule { return s.rules }

// LoadRules reads rules from files and directories. Directories are
// walked for .yaml/.yml files.
func LoadRules(paths []string) ([]*rule.Rule, error) {
	var rules []*rule.Rule
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			parsed, err := rule.ParseFile(path)
			if err != nil {
				return nil, err
			}
			rules = append(rules, parsed...)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			switch strings.ToLower(filepath.Ext(p)) {
			case ".yaml", ".yml":
				parsed, err := rule.ParseFile(p)
				if err != nil {
					return err
				}
				rules = append(rules, parsed...)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// Run scans every discovered target with every applicable rule. File
// matching runs concurrently up to Limits.Jobs; each rule/file pair gets
// its own wall-clock budget, and a pair that exceeds it is reported as a
// timeout error without sinking the rest of the scan.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	targets, err := DiscoverTargets(s.cfg)
	if err != nil {
		return nil, err
	}

	report := &Report{Stats: Stats{RulesLoaded: len(s.rules)}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Limits.Jobs)

	for _, tf := range targets {
		tf := tf
		g.Go(func() error {
			findings, errs := s.scanFile(gctx, tf)
			mu.Lock()
			report.Findings = append(report.Findings, findings...)
			report.Errors = append(report.Errors, errs...)
			report.Stats.FilesScanned++
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortFindings(report.Findings)
	report.Stats.Duration = time.Since(start)
	return report, nil
}

func (s *Scanner) scanFile(ctx context.Context, tf TargetFile) ([]engine.Finding, []*rerr.RuleError) {
	content, err := os.ReadFile(tf.Path)
	if err != nil {
		return nil, []*rerr.RuleError{rerr.New(rerr.KindFile, err).WithPath(tf.Rel)}
	}

	target := matcher.NewTarget(tf.Rel, content, tf.Lang)
	defer target.Close()

	timeout := time.Duration(s.cfg.Limits.RuleTimeoutMs) * time.Millisecond

	var findings []engine.Finding
	var errs []*rerr.RuleError
	for _, r := range s.rules {
		if !r.AppliesTo(tf.Lang) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		ruleCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := s.engine.EvalRule(ruleCtx, r, target)
		cancel()
		if err != nil {
			if re, ok := err.(*rerr.RuleError); ok {
				errs = append(errs, re)
			} else {
				errs = append(errs, rerr.New(rerr.KindMatching, err).WithRule(r.ID).WithPath(tf.Rel))
			}
			continue
		}
		findings = append(findings, result.Findings...)
		errs = append(errs, result.Errors...)
	}
	return findings, errs
}

func sortFindings(findings []engine.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Path != findings[j].Path {
			return findings[i].Path < findings[j].Path
		}
		if findings[i].Span.Start != findings[j].Span.Start {
			return findings[i].Span.Start < findings[j].Span.Start
		}
		return findings[i].RuleID < findings[j].RuleID
	})
}
