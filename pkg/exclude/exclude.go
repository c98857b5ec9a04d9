// Package exclude decides which files under a source root are left out of a
// scan entirely.
package exclude

import (
	"path"
	"path/filepath"
	"strings"
)

// Matcher evaluates shell-glob exclusion patterns.
// Each pattern is tried against:
//   - the bare file name: *.tmp, Thumbs.db
//   - the path relative to the source root: docs/*.bak
//   - every directory name between the root and the file: node_modules, .git
//
// Matching follows fnmatch: "*" and "?" also match "/", so docs/* covers the
// whole docs tree, and "[!...]" is a negated class. A trailing slash (".git/")
// is accepted and ignored. Malformed patterns never match.
type Matcher struct {
	patterns []string
	compiled []string
}

// New builds a matcher from a list of patterns
func New(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSuffix(filepath.ToSlash(strings.TrimSpace(p)), "/")
		if p == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
		m.compiled = append(m.compiled, compile(p))
	}
	return m
}

// Patterns returns the normalized patterns
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}

// Excluded reports whether the file at filePath, found under root, must be
// skipped
func (m *Matcher) Excluded(filePath, root string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	rel, err := filepath.Rel(root, filePath)
	if err != nil {
		rel = filepath.Base(filePath)
	}
	rel = filepath.ToSlash(rel)
	name := path.Base(rel)
	segments := strings.Split(rel, "/")

	for _, pattern := range m.compiled {
		if match(pattern, name) || match(pattern, rel) {
			return true
		}
		for _, seg := range segments[:len(segments)-1] {
			if match(pattern, seg) {
				return true
			}
		}
	}
	return false
}

// sep stands in for "/" so path.Match lets wildcards cross directories
const sep = "\x00"

// compile rewrites a shell pattern into path.Match syntax
func compile(pattern string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			b.WriteByte(c)
			i++
			c = pattern[i]
		case c == '[' && !inClass:
			inClass = true
			b.WriteByte(c)
			if i+1 < len(pattern) && pattern[i+1] == '!' {
				b.WriteByte('^')
				i++
			}
			continue
		case c == ']' && inClass:
			inClass = false
		}
		if c == '/' {
			b.WriteString(sep)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func match(pattern, name string) bool {
	ok, err := path.Match(pattern, strings.ReplaceAll(name, "/", sep))
	return err == nil && ok
}
