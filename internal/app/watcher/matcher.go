package watcher

import (
	"strings"

	"github.com/gobwas/glob"
)

// skipPatterns are the hidden/temp-file globs the watcher ignores outright.
// Most of them never resolve to a UnitName anyway; a hidden file such as
// ".x.jig" would, and is kept out only by this list.
var skipPatterns = []string{
	".*",
	"*~",
	"*.swp",
	"*.swx",
	"#*#",
}

// Matcher decides which directory entries the watcher should ignore before
// even attempting to resolve a UnitName from them.
type Matcher interface {
	Skip(name string) bool
}

type matcher struct {
	globs []glob.Glob
}

// NewMatcher compiles the built-in hidden/temp-file skip patterns.
func NewMatcher() (Matcher, error) {
	m := &matcher{globs: make([]glob.Glob, 0, len(skipPatterns))}

	for _, p := range skipPatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}

		m.globs = append(m.globs, g)
	}

	return m, nil
}

func (m *matcher) Skip(name string) bool {
	if name == "" || strings.TrimSpace(name) == "" {
		return true
	}

	for _, g := range m.globs {
		if g.Match(name) {
			return true
		}
	}

	return false
}
