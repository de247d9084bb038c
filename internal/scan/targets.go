// Package scan discovers target files, runs every applicable rule over
// them with bounded concurrency, and optionally keeps watching for
// changes.
package scan

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/andersk/semgrep/internal/config"
	"github.com/andersk/semgrep/internal/parser"
	"github.com/andersk/semgrep/internal/types"
)

// TargetFile is one file selected for scanning.
type TargetFile struct {
	// Path is absolute; Rel is the root-relative path used in findings
	// and pattern matching against exclusions.
	Path string
	Rel  string
	Lang types.Language
	Size int64
}

// discovery filters the file tree down to scannable targets.
type discovery struct {
	cfg       *config.Config
	gitignore *config.Gitignore
}

func newDiscovery(cfg *config.Config) (*discovery, error) {
	d := &discovery{cfg: cfg, gitignore: &config.Gitignore{}}
	if cfg.Scan.RespectGitignore {
		g, err := config.LoadGitignore(cfg.Root)
		if err != nil {
			return nil, err
		}
		d.gitignore = g
	}
	return d, nil
}

// DiscoverTargets walks the configured root and returns every file that
// survives exclusion, size and binary filtering. Files without a known
// extension are still returned as generic targets so textual rules can
// see them.
func DiscoverTargets(cfg *config.Config) ([]TargetFile, error) {
	d, err := newDiscovery(cfg)
	if err != nil {
		return nil, err
	}

	var targets []TargetFile
	visited := make(map[string]bool)

	var walk func(dir string) error
	walk = func(dir string) error {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return nil
		}
		if visited[real] {
			return nil
		}
		visited[real] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			rel, err := filepath.Rel(d.cfg.Root, path)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if entry.IsDir() || (entry.Type()&os.ModeSymlink != 0 && isDir(path)) {
				if entry.Type()&os.ModeSymlink != 0 && !d.cfg.Scan.FollowSymlinks {
					continue
				}
				if d.excluded(rel, true) {
					continue
				}
				if err := walk(path); err != nil {
					return err
				}
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			target, ok := d.accept(path, rel)
			if ok {
				targets = append(targets, target)
			}
		}
		return nil
	}

	if err := walk(cfg.Root); err != nil {
		return nil, err
	}
	return targets, nil
}

func (d *discovery) accept(path, rel string) (TargetFile, bool) {
	if d.excluded(rel, false) {
		return TargetFile{}, false
	}
	if len(d.cfg.Scan.Include) > 0 && !matchesAny(d.cfg.Scan.Include, rel) {
		return TargetFile{}, false
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() > d.cfg.Scan.MaxFileSize {
		return TargetFile{}, false
	}
	if isBinary(path) {
		return TargetFile{}, false
	}

	lang := types.LangGeneric
	if l, ok := parser.LanguageForExtension(strings.ToLower(filepath.Ext(path))); ok {
		lang = l
	}
	return TargetFile{Path: path, Rel: rel, Lang: lang, Size: info.Size()}, true
}

func (d *discovery) excluded(rel string, isDir bool) bool {
	if matchesAny(d.cfg.Scan.Exclude, rel) {
		return true
	}
	if isDir && matchesAny(d.cfg.Scan.Exclude, rel+"/") {
		return true
	}
	return d.gitignore.Ignored(rel, isDir)
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// isBinary sniffs the first kilobyte for NUL bytes, which no supported
// source language contains.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) >= 0
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
