package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ignoreFrom(lines ...string) *Gitignore {
	g := &Gitignore{}
	for _, l := range lines {
		g.Add(l)
	}
	return g
}

func TestGitignoreBasicPatterns(t *testing.T) {
	g := ignoreFrom("*.log", "build/", "/secrets.txt")

	assert.True(t, g.Ignored("debug.log", false))
	assert.True(t, g.Ignored("nested/deep/trace.log", false))
	assert.False(t, g.Ignored("logfile.txt", false))

	assert.True(t, g.Ignored("build", true))
	assert.True(t, g.Ignored("build/output.js", false))
	assert.True(t, g.Ignored("sub/build/output.js", false))

	assert.True(t, g.Ignored("secrets.txt", false))
	assert.False(t, g.Ignored("sub/secrets.txt", false))
}

func TestGitignoreNegation(t *testing.T) {
	g := ignoreFrom("*.log", "!keep.log")

	assert.True(t, g.Ignored("debug.log", false))
	assert.False(t, g.Ignored("keep.log", false))
}

func TestGitignoreAnchoredSubpath(t *testing.T) {
	g := ignoreFrom("docs/generated")

	assert.True(t, g.Ignored("docs/generated", true))
	assert.True(t, g.Ignored("docs/generated/api.md", false))
	assert.False(t, g.Ignored("other/docs/generated", true))
}

func TestGitignoreSkipsCommentsAndBlanks(t *testing.T) {
	g := ignoreFrom("# comment", "", "  ", "*.tmp")
	require.Len(t, g.patterns, 1)
	assert.True(t, g.Ignored("a.tmp", false))
}

func TestLoadGitignoreMissingFile(t *testing.T) {
	g, err := LoadGitignore(t.TempDir())
	require.NoError(t, err)
	assert.False(t, g.Ignored("anything.go", false))
}

func TestDetectBuildArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tsconfig.json", `{"compilerOptions": {"outDir": "lib"}}`)
	writeFile(t, dir, "Cargo.toml", "[build]\ntarget-dir = \"artifacts\"\n")

	patterns := DetectBuildArtifacts(dir)
	assert.Contains(t, patterns, "**/lib/**")
	assert.Contains(t, patterns, "**/artifacts/**")
}
