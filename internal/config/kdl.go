package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// ConfigFileName is the per-project configuration file.
const ConfigFileName = ".semgrep.kdl"

// Load builds the configuration for a project root: defaults overlaid
// with the project's .semgrep.kdl when present. The returned Root is
// always absolute.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()

	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	cfg.Root = absRoot

	path := filepath.Join(absRoot, ConfigFileName)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}

	if err := parseKDL(cfg, string(content)); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

// parseKDL overlays a KDL document onto cfg. Layout:
//
//	rules "rules/" "extra.yaml"
//	scan {
//	    include "src/**"
//	    exclude "testdata/**"
//	    respect_gitignore true
//	    max_file_size "2MB"
//	}
//	limits {
//	    rule_timeout_ms 5000
//	    max_nesting_depth 8
//	    jobs 4
//	}
//	output {
//	    format "json"
//	    explanations true
//	}
//	constant_propagation false
func parseKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "rules":
			cfg.RuleFiles = append(cfg.RuleFiles, collectStringArgs(n)...)
		case "scan":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "include":
					cfg.Scan.Include = append(cfg.Scan.Include, collectStringArgs(cn)...)
				case "exclude":
					cfg.Scan.Exclude = append(cfg.Scan.Exclude, collectStringArgs(cn)...)
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Scan.RespectGitignore = b
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Scan.FollowSymlinks = b
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scan.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						sz, err := parseSize(s)
						if err != nil {
							return fmt.Errorf("max_file_size: %w", err)
						}
						cfg.Scan.MaxFileSize = sz
					}
				}
			}
		case "limits":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "rule_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Limits.RuleTimeoutMs = v
					}
				case "max_nesting_depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Limits.MaxNestingDepth = v
					}
				case "jobs":
					if v, ok := firstIntArg(cn); ok {
						cfg.Limits.Jobs = v
					}
				}
			}
		case "output":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "format":
					if s, ok := firstStringArg(cn); ok {
						cfg.Output.Format = s
					}
				case "explanations":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Output.Explanations = b
					}
				}
			}
		case "constant_propagation":
			if b, ok := firstBoolArg(n); ok {
				cfg.ConstantPropagation = b
			}
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	// Block form: exclude { "pattern" } puts strings in child node names.
	if len(out) == 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// parseSize reads human sizes like "2MB" or "500KB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier, s = 1024*1024*1024, strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier, s = 1024*1024, strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier, s = 1024, strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	var num int64
	if _, err := fmt.Sscanf(s, "%d", &num); err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return num * multiplier, nil
}
