package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/andersk/semgrep/internal/config"
	"github.com/andersk/semgrep/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const execRule = `
rules:
  - id: python-exec
    message: calls exec on $X
    severity: ERROR
    languages: [python]
    pattern: exec($X)
  - id: todo-note
    message: leftover TODO
    severity: INFO
    languages: [generic]
    pattern-regex: "TODO: \\w+"
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func scanTree(t *testing.T, files map[string]string, tweak func(*config.Config)) *Report {
	t.Helper()
	root := writeTree(t, files)

	cfg := config.Default()
	cfg.Root = root
	cfg.RuleFiles = []string{filepath.Join(root, "rules.yaml")}
	require.NoError(t, os.WriteFile(cfg.RuleFiles[0], []byte(execRule), 0o644))
	if tweak != nil {
		tweak(cfg)
	}

	s, err := NewScanner(cfg)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	return report
}

func TestScanFindsAcrossFiles(t *testing.T) {
	report := scanTree(t, map[string]string{
		"app/main.py":  "exec(data)\n",
		"app/other.py": "print(ok)\nexec(more)\n",
		"notes.txt":    "TODO: cleanup\n",
	}, nil)

	require.Len(t, report.Findings, 3)
	// Findings are ordered by path, then position.
	assert.Equal(t, "app/main.py", report.Findings[0].Path)
	assert.Equal(t, "app/other.py", report.Findings[1].Path)
	assert.Equal(t, "notes.txt", report.Findings[2].Path)
	assert.Equal(t, "todo-note", report.Findings[2].RuleID)
	assert.Equal(t, 2, report.Stats.RulesLoaded)
	assert.GreaterOrEqual(t, report.Stats.FilesScanned, 3)
}

func TestScanRespectsLanguages(t *testing.T) {
	// exec() in a Go file must not trip the python rule.
	report := scanTree(t, map[string]string{
		"main.go": "package main\n\nfunc main() { exec(data) }\n",
	}, nil)

	for _, f := range report.Findings {
		assert.NotEqual(t, "python-exec", f.RuleID)
	}
}

func TestScanHonorsExcludes(t *testing.T) {
	report := scanTree(t, map[string]string{
		"src/app.py":          "exec(a)\n",
		"vendor/dep/lib.py":   "exec(b)\n",
		"testdata/fixture.py": "exec(c)\n",
	}, func(cfg *config.Config) {
		cfg.Scan.Exclude = append(cfg.Scan.Exclude, "testdata/**")
	})

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "src/app.py", report.Findings[0].Path)
}

func TestScanHonorsGitignore(t *testing.T) {
	report := scanTree(t, map[string]string{
		".gitignore":     "generated/\n",
		"src/app.py":     "exec(a)\n",
		"generated/g.py": "exec(b)\n",
	}, nil)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "src/app.py", report.Findings[0].Path)
}

func TestScanSkipsBinaryAndOversized(t *testing.T) {
	report := scanTree(t, map[string]string{
		"bin.py":   "exec(a)\x00binary\n",
		"small.py": "exec(b)\n",
	}, func(cfg *config.Config) {
		cfg.Scan.MaxFileSize = 1024
	})

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "small.py", report.Findings[0].Path)
}

func TestDiscoverAssignsLanguages(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py":  "x = 1\n",
		"b.go":  "package b\n",
		"c.txt": "text\n",
	})
	cfg := config.Default()
	cfg.Root = root

	targets, err := DiscoverTargets(cfg)
	require.NoError(t, err)

	byRel := map[string]types.Language{}
	for _, tf := range targets {
		byRel[tf.Rel] = tf.Lang
	}
	assert.Equal(t, types.LangPython, byRel["a.py"])
	assert.Equal(t, types.LangGo, byRel["b.go"])
	assert.Equal(t, types.LangGeneric, byRel["c.txt"])
}

func TestLoadRulesFromDirectory(t *testing.T) {
	root := writeTree(t, map[string]string{
		"rules/a.yaml": execRule,
		"rules/b.yml": `
rules:
  - id: another
    message: m
    severity: WARNING
    languages: [python]
    pattern: eval(...)
`,
		"rules/readme.md": "not a rule\n",
	})

	rules, err := LoadRules([]string{filepath.Join(root, "rules")})
	require.NoError(t, err)
	assert.Len(t, rules, 3)
}
