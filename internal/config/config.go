// Package config holds scan configuration: where rules and targets come
// from, what gets excluded, and the evaluation limits. Configuration is
// layered: built-in defaults, then the project's .semgrep.kdl, then
// command-line flags.
package config

import (
	"fmt"
	"runtime"
)

// Default evaluation limits.
const (
	DefaultRuleTimeoutMs   = 5000
	DefaultMaxFileSize     = 1 * 1024 * 1024
	DefaultMaxNestingDepth = 8
)

// Scan controls target discovery.
type Scan struct {
	// Include restricts scanning to paths matching any of these globs.
	// Empty means everything not excluded.
	Include []string
	// Exclude drops paths matching any of these globs, on top of the
	// built-in artifact exclusions.
	Exclude []string
	// RespectGitignore folds .gitignore patterns into the exclusions.
	RespectGitignore bool
	// FollowSymlinks walks through symlinked directories.
	FollowSymlinks bool
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
}

// Limits bounds one rule/file evaluation.
type Limits struct {
	// RuleTimeoutMs is the wall-clock budget per rule per file.
	RuleTimeoutMs int
	// MaxNestingDepth caps metavariable-pattern recursion.
	MaxNestingDepth int
	// Jobs is the number of files matched concurrently.
	Jobs int
}

// Output controls how findings are rendered.
type Output struct {
	// Format is "text" or "json".
	Format string
	// Explanations includes the per-operator evaluation tree in JSON
	// output.
	Explanations bool
}

// Config is the full scan configuration.
type Config struct {
	// Root is the directory being scanned; always absolute after Load.
	Root string
	// RuleFiles are the YAML rule files or directories to load.
	RuleFiles []string

	Scan   Scan
	Limits Limits
	Output Output

	// ConstantPropagation lets conditions see the constant value of
	// literal bindings.
	ConstantPropagation bool

	// Verbose sends engine trace events to stderr.
	Verbose bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scan: Scan{
			RespectGitignore: true,
			MaxFileSize:      DefaultMaxFileSize,
			Exclude:          defaultExclusions(),
		},
		Limits: Limits{
			RuleTimeoutMs:   DefaultRuleTimeoutMs,
			MaxNestingDepth: DefaultMaxNestingDepth,
			Jobs:            runtime.NumCPU(),
		},
		Output: Output{
			Format: "text",
		},
		ConstantPropagation: true,
	}
}

// Validate checks invariants the rest of the pipeline relies on.
func (c *Config) Validate() error {
	if len(c.RuleFiles) == 0 {
		return fmt.Errorf("no rule files configured")
	}
	if c.Limits.RuleTimeoutMs <= 0 {
		return fmt.Errorf("rule timeout must be positive, got %d", c.Limits.RuleTimeoutMs)
	}
	if c.Limits.Jobs <= 0 {
		return fmt.Errorf("jobs must be positive, got %d", c.Limits.Jobs)
	}
	if c.Limits.MaxNestingDepth <= 0 {
		return fmt.Errorf("max nesting depth must be positive, got %d", c.Limits.MaxNestingDepth)
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	return nil
}

// defaultExclusions are path globs no scan should descend into: VCS
// metadata, dependency trees, build output, caches and binary-adjacent
// artifacts. Project configuration can extend but not shrink this list.
func defaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/.hg/**",
		"**/.svn/**",

		// Dependencies
		"**/node_modules/**",
		"**/vendor/**",
		"**/bower_components/**",
		"**/venv/**",
		"**/.venv/**",
		"**/site-packages/**",
		"**/.cargo/**",
		"**/.gradle/**",

		// Build output
		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/target/**",
		"**/obj/**",
		"**/*.min.js",
		"**/*.min.css",
		"**/*.bundle.js",

		// Caches
		"**/__pycache__/**",
		"**/.pytest_cache/**",
		"**/.mypy_cache/**",
		"**/.ruff_cache/**",
		"**/.next/**",
		"**/.nuxt/**",
		"**/.parcel-cache/**",
		"**/.turbo/**",
		"**/.cache/**",

		// Editor and OS noise
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
		"**/Thumbs.db",

		// Coverage and test output
		"**/coverage/**",
		"**/.nyc_output/**",
		"**/htmlcov/**",
		"**/.tox/**",
	}
}
