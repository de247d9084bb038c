package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Gitignore matches paths against the patterns of a .gitignore file.
// Matching is last-match-wins with negation, like git's own semantics,
// over slash-separated paths relative to the repository root.
type Gitignore struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob     string
	negate   bool
	dirOnly  bool
	anchored bool
}

// LoadGitignore reads root/.gitignore. A missing file yields an empty
// matcher, not an error.
func LoadGitignore(root string) (*Gitignore, error) {
	g := &Gitignore{}
	file, err := os.Open(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return g, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		g.Add(scanner.Text())
	}
	return g, scanner.Err()
}

// Add parses one .gitignore line into the matcher. Blank lines and
// comments are ignored.
func (g *Gitignore) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	p := ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	// A slash anywhere but the end anchors the pattern to the root.
	if strings.HasPrefix(line, "/") {
		line = line[1:]
		p.anchored = true
	} else if strings.Contains(line, "/") {
		p.anchored = true
	}

	p.glob = line
	g.patterns = append(g.patterns, p)
}

// Ignored reports whether a root-relative path is excluded. isDir must be
// true for directories so that dir-only patterns apply.
func (g *Gitignore) Ignored(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	ignored := false
	for _, p := range g.patterns {
		if p.dirOnly && !isDir && !matchesParentDir(p, path) {
			continue
		}
		if p.matches(path) {
			ignored = !p.negate
		}
	}
	return ignored
}

func (p ignorePattern) matches(path string) bool {
	if p.anchored {
		if ok, _ := doublestar.Match(p.glob, path); ok {
			return true
		}
		// An anchored directory pattern covers everything beneath it.
		ok, _ := doublestar.Match(p.glob+"/**", path)
		return ok
	}
	// Unanchored patterns match any path component.
	if ok, _ := doublestar.Match("**/"+p.glob, path); ok {
		return true
	}
	ok, _ := doublestar.Match("**/"+p.glob+"/**", path)
	return ok
}

// matchesParentDir reports whether a dir-only pattern matches one of the
// path's parent directories, which makes the files inside ignored too.
func matchesParentDir(p ignorePattern, path string) bool {
	dir := filepath.ToSlash(filepath.Dir(path))
	for dir != "." && dir != "/" {
		if p.matches(dir) {
			return true
		}
		dir = filepath.ToSlash(filepath.Dir(dir))
	}
	return false
}
