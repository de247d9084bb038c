package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andersk/semgrep/internal/config"
)

const snippetRules = `
rules:
  - id: python-exec
    message: calls exec on $X
    severity: ERROR
    languages: [python]
    pattern: exec($X)
`

func testServer(t *testing.T, root string) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Root = root
	return NewServer(cfg)
}

func TestCheckSnippetFindsMatch(t *testing.T) {
	s := testServer(t, t.TempDir())

	report, err := s.checkSnippet(context.Background(), checkSnippetParams{
		RulesYAML: snippetRules,
		Code:      "exec(payload)\nprint(ok)\n",
		Language:  "python",
	})
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "python-exec", report.Findings[0].RuleID)
	assert.Equal(t, "calls exec on payload", report.Findings[0].Message)
	assert.Empty(t, report.Errors)
}

func TestCheckSnippetUnknownLanguage(t *testing.T) {
	s := testServer(t, t.TempDir())

	_, err := s.checkSnippet(context.Background(), checkSnippetParams{
		RulesYAML: snippetRules,
		Code:      "exec(x)",
		Language:  "cobol",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cobol")
}

func TestCheckSnippetBadRules(t *testing.T) {
	s := testServer(t, t.TempDir())

	_, err := s.checkSnippet(context.Background(), checkSnippetParams{
		RulesYAML: "rules: [{id: broken}]",
		Code:      "exec(x)",
		Language:  "python",
	})
	require.Error(t, err)
}

func TestRunScanUsesRuleOverride(t *testing.T) {
	root := t.TempDir()
	rulesPath := filepath.Join(root, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(snippetRules), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("exec(data)\n"), 0o644))

	s := testServer(t, root)
	report, err := s.runScan(context.Background(), scanParams{Rules: []string{rulesPath}})
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "app.py", report.Findings[0].Path)
}

func TestRulesSchemaResult(t *testing.T) {
	s := testServer(t, t.TempDir())

	result, err := s.handleRulesSchema(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := result.Content[0].(*sdk.TextContent).Text
	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &schema))
	assert.NotEmpty(t, schema)
}
