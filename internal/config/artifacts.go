package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DetectBuildArtifacts inspects the project's build configuration files
// and returns exclusion globs for the output directories they declare.
// Scanning generated output wastes time and produces findings nobody can
// fix in place, so these are folded into Scan.Exclude at load time.
func DetectBuildArtifacts(root string) []string {
	var patterns []string
	patterns = append(patterns, detectNodeOutputs(root)...)
	patterns = append(patterns, detectRustOutputs(root)...)
	patterns = append(patterns, detectPythonOutputs(root)...)
	return dedupStrings(patterns)
}

// detectNodeOutputs reads tsconfig.json and package.json for configured
// output directories.
func detectNodeOutputs(root string) []string {
	var patterns []string

	if data, err := os.ReadFile(filepath.Join(root, "tsconfig.json")); err == nil {
		var tsconfig struct {
			CompilerOptions struct {
				OutDir string `json:"outDir"`
			} `json:"compilerOptions"`
		}
		if json.Unmarshal(data, &tsconfig) == nil && tsconfig.CompilerOptions.OutDir != "" {
			patterns = append(patterns, dirPattern(tsconfig.CompilerOptions.OutDir))
		}
	}

	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var pkg struct {
			Scripts map[string]string `json:"scripts"`
		}
		if json.Unmarshal(data, &pkg) == nil {
			for _, script := range pkg.Scripts {
				parts := strings.Fields(script)
				for i, part := range parts {
					if (part == "--outDir" || part == "-outDir") && i+1 < len(parts) {
						patterns = append(patterns, dirPattern(strings.Trim(parts[i+1], `"'`)))
					}
				}
			}
		}
	}
	return patterns
}

// detectRustOutputs reads Cargo.toml for a custom target directory; the
// default target/ is already in the built-in exclusions.
func detectRustOutputs(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var cargo struct {
		Build struct {
			TargetDir string `toml:"target-dir"`
		} `toml:"build"`
	}
	if toml.Unmarshal(data, &cargo) != nil || cargo.Build.TargetDir == "" {
		return nil
	}
	return []string{dirPattern(cargo.Build.TargetDir)}
}

// detectPythonOutputs reads pyproject.toml for build backends that write
// into a configurable directory.
func detectPythonOutputs(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, "pyproject.toml"))
	if err != nil {
		return nil
	}
	var pyproject struct {
		Tool struct {
			Hatch struct {
				Build struct {
					Directory string `toml:"directory"`
				} `toml:"build"`
			} `toml:"hatch"`
		} `toml:"tool"`
	}
	if toml.Unmarshal(data, &pyproject) != nil || pyproject.Tool.Hatch.Build.Directory == "" {
		return nil
	}
	return []string{dirPattern(pyproject.Tool.Hatch.Build.Directory)}
}

func dirPattern(dir string) string {
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	return "**/" + dir + "/**"
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
