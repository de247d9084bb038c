package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andersk/semgrep/internal/engine"
	rerr "github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/scan"
	"github.com/andersk/semgrep/internal/types"
)

func sampleReport() *scan.Report {
	span := types.NewSpan(0, 12)
	span.StartPoint = types.Point{Row: 4, Column: 2}
	return &scan.Report{
		Findings: []engine.Finding{{
			RuleID:   "python-exec",
			Message:  "calls exec on data",
			Severity: types.SeverityError,
			Path:     "app/main.py",
			Span:     span,
			Lines:    "  exec(data)",
		}},
		Errors: []*rerr.RuleError{
			rerr.New(rerr.KindMatching, errors.New("bad pattern")).WithRule("broken").WithPath("app/main.py"),
		},
		Stats: scan.Stats{FilesScanned: 3, RulesLoaded: 2, Duration: 42 * time.Millisecond},
	}
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "app/main.py:5:3")
	assert.Contains(t, out, "[python-exec] calls exec on data")
	assert.Contains(t, out, "\n      exec(data)\n")
	assert.Contains(t, out, "error: matching [broken]")
	assert.Contains(t, out, "1 findings from 2 rules across 3 files")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleReport()))

	var decoded struct {
		Findings []map[string]interface{} `json:"findings"`
		Errors   []map[string]interface{} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Findings, 1)
	assert.Equal(t, "python-exec", decoded.Findings[0]["rule_id"])
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "matching", decoded.Errors[0]["kind"])
	assert.Equal(t, "bad pattern", decoded.Errors[0]["message"])
}

func TestJSONOutputEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, &scan.Report{}))

	// Empty collections stay arrays, not null.
	out := strings.TrimSpace(buf.String())
	assert.Contains(t, out, `"findings": []`)
	assert.Contains(t, out, `"errors": []`)
}
