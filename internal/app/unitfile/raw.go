// Package unitfile turns unit files on disk into Descriptions. The grammar
// itself is treated as an opaque format (§1 scopes it out of the core): raw.go
// only produces a category→key→value tree; description.go is where the
// semantic, kind-specific meaning lives.
package unitfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"jigctl/internal/app/errors"
)

// Raw is the parsed-but-uninterpreted contents of a unit file: an INI-like
// grouping of sections, each a simple key→value map.
type Raw struct {
	Sections map[string]map[string]string
}

// Section returns the key→value map for a section name, or nil if absent.
func (r *Raw) Section(name string) map[string]string {
	return r.Sections[name]
}

// Get returns a single key's value within a section.
func (r *Raw) Get(section, key string) (string, bool) {
	sec, ok := r.Sections[section]
	if !ok {
		return "", false
	}

	v, ok := sec[key]

	return v, ok
}

// RequireSection returns a section's map, or a ParseError if it is absent.
func (r *Raw) RequireSection(section string) (map[string]string, error) {
	sec, ok := r.Sections[section]
	if !ok {
		return nil, fmt.Errorf("%w: [%s]", errors.ErrSectionMissing, section)
	}

	return sec, nil
}

// RequireKey returns a key's value, or a ParseError naming the section/key.
func RequireKey(section map[string]string, sectionName, key string) (string, error) {
	v, ok := section[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: [%s] %s", errors.ErrKeyMissing, sectionName, key)
	}

	return v, nil
}

// List splits a comma/whitespace separated field into trimmed, non-empty
// entries (§6: "List-valued fields are split on comma or whitespace").
func List(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	out := make([]string, 0, len(fields))

	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}

// Parse reads an INI-like unit file: "[Section]" headers, "key = value" (or
// "key: value") pairs, blank lines and lines starting with ';' or '#'
// ignored. Unknown keys are retained (callers decide what's recognised);
// this layer never rejects a key.
func Parse(r io.Reader) (*Raw, error) {
	raw := &Raw{Sections: map[string]map[string]string{}}

	scanner := bufio.NewScanner(r)
	section := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := raw.Sections[section]; !ok {
				raw.Sections[section] = map[string]string{}
			}

			continue
		}

		key, value, ok := splitKV(line)
		if !ok {
			continue
		}

		if section == "" {
			section = "Main"
			if _, ok := raw.Sections[section]; !ok {
				raw.Sections[section] = map[string]string{}
			}
		}

		raw.Sections[section][key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return raw, nil
}

// splitKV splits "key = value" or "key: value" into trimmed parts.
func splitKV(line string) (string, string, bool) {
	if idx := strings.IndexByte(line, '='); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
	}

	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
	}

	return "", "", false
}
