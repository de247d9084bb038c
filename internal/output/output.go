// Package output renders scan reports for people (text) and tools
// (JSON).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/andersk/semgrep/internal/engine"
	rerr "github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/scan"
	"github.com/andersk/semgrep/internal/types"
)

// Text writes one line per finding, grouped the way the report is
// sorted: by path, then position.
func Text(w io.Writer, report *scan.Report) error {
	for _, f := range report.Findings {
		// Rows and columns are zero-based internally; editors count
		// from one.
		_, err := fmt.Fprintf(w, "%s:%d:%d %s [%s] %s\n",
			f.Path, f.Span.StartPoint.Row+1, f.Span.StartPoint.Column+1,
			f.Severity, f.RuleID, f.Message)
		if err != nil {
			return err
		}
		if f.Lines != "" {
			if _, err := fmt.Fprintf(w, "    %s\n", f.Lines); err != nil {
				return err
			}
		}
	}

	for _, e := range report.Errors {
		if _, err := fmt.Fprintf(w, "error: %s\n", e.Error()); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n%d findings from %d rules across %d files in %s\n",
		len(report.Findings), report.Stats.RulesLoaded, report.Stats.FilesScanned,
		report.Stats.Duration.Round(time.Millisecond))
	return err
}

// jsonReport is the stable machine-readable shape.
type jsonReport struct {
	Findings []engine.Finding `json:"findings"`
	Errors   []jsonError      `json:"errors"`
	Stats    scan.Stats       `json:"stats"`
}

type jsonError struct {
	Kind    rerr.Kind   `json:"kind"`
	RuleID  string      `json:"rule_id,omitempty"`
	Path    string      `json:"path,omitempty"`
	Span    *types.Span `json:"span,omitempty"`
	Message string      `json:"message"`
}

// JSON writes the whole report as one JSON document.
func JSON(w io.Writer, report *scan.Report) error {
	out := jsonReport{
		Findings: report.Findings,
		Errors:   make([]jsonError, 0, len(report.Errors)),
		Stats:    report.Stats,
	}
	if out.Findings == nil {
		out.Findings = []engine.Finding{}
	}
	for _, e := range report.Errors {
		je := jsonError{Kind: e.Kind, RuleID: e.RuleID, Path: e.Path, Span: e.Span}
		if e.Underlying != nil {
			je.Message = e.Underlying.Error()
		}
		out.Errors = append(out.Errors, je)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
