package exclude

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcluded(t *testing.T) {
	root := filepath.FromSlash("/data/docs")
	m := New([]string{"*.tmp", "Thumbs.db", "node_modules", ".git/", "reports/*.bak", "  ", "[bad"})

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"NameGlob", "/data/docs/a/b/file.tmp", true},
		{"ExactName", "/data/docs/Thumbs.db", true},
		{"DirectorySegment", "/data/docs/web/node_modules/pkg/index.js", true},
		{"TrailingSlashPattern", "/data/docs/.git/config", true},
		{"RelativeGlob", "/data/docs/reports/q1.bak", true},
		{"RelativeGlobWrongDir", "/data/docs/other/q1.bak", false},
		{"StarCrossesSlash", "/data/docs/reports/old/q1.bak", true},
		{"Regular", "/data/docs/a/b/file.txt", false},
		{"SimilarName", "/data/docs/node_modules.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Excluded(filepath.FromSlash(tt.path), root))
		})
	}
}

func TestExcludedFnmatchSemantics(t *testing.T) {
	root := filepath.FromSlash("/r")

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"NegatedClassExcludes", "[!a]*.txt", "/r/b.txt", true},
		{"NegatedClassKeeps", "[!a]*.txt", "/r/a.txt", false},
		{"CaretClass", "[^a]*.txt", "/r/a.txt", false},
		{"PlainClass", "[ab]*.txt", "/r/a.txt", true},
		{"DirStarCoversSubtree", "docs/*", "/r/docs/sub/x.txt", true},
		{"DirStarDirectChild", "docs/*", "/r/docs/x.txt", true},
		{"DirStarOtherDir", "docs/*", "/r/other/x.txt", false},
		{"QuestionCrossesSlash", "docs?x.txt", "/r/docs/x.txt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New([]string{tt.pattern})
			assert.Equal(t, tt.want, m.Excluded(filepath.FromSlash(tt.path), root))
		})
	}
}

func TestPatterns(t *testing.T) {
	m := New([]string{" *.log ", "", ".git/"})
	assert.Equal(t, []string{"*.log", ".git"}, m.Patterns())

	var nilMatcher *Matcher
	assert.Nil(t, nilMatcher.Patterns())
	assert.False(t, nilMatcher.Excluded("/a/b", "/a"))
}

func TestMalformedPatternNeverMatches(t *testing.T) {
	m := New([]string{"[bad"})
	assert.False(t, m.Excluded("/r/[bad", "/r"))
}

func TestEmptyMatcher(t *testing.T) {
	m := New(nil)
	assert.False(t, m.Excluded("/r/anything.tmp", "/r"))
}
