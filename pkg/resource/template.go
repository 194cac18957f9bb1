// Package resource renders and parses the resource names used by the admin
// API, such as projects/{project}/databases/{database}/collectionGroups/{collection}/indexes/{index}.
package resource

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
)

// Template is a compiled path template made of literal segments and
// single-segment {variables}.
type Template struct {
	pattern  string
	segments []segment
}

type segment struct {
	literal  string
	variable string
}

// MustCompile parses pattern and panics if it is malformed.
func MustCompile(pattern string) *Template {
	t, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Compile parses a pattern such as "projects/{project}/locations/{location}".
func Compile(pattern string) (*Template, error) {
	t := &Template{pattern: pattern}
	seen := make(map[string]bool)
	for _, part := range strings.Split(pattern, "/") {
		if part == "" {
			return nil, fmt.Errorf("template %q: empty segment", pattern)
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			if name == "" || seen[name] {
				return nil, fmt.Errorf("template %q: bad variable %q", pattern, part)
			}
			seen[name] = true
			t.segments = append(t.segments, segment{variable: name})
			continue
		}
		t.segments = append(t.segments, segment{literal: part})
	}
	return t, nil
}

func (t *Template) String() string { return t.pattern }

// Vars returns the variable names of t in order.
func (t *Template) Vars() []string {
	var vars []string
	for _, s := range t.segments {
		if s.variable != "" {
			vars = append(vars, s.variable)
		}
	}
	return vars
}

// Render substitutes values into t. Every variable must have a non-empty
// value without a slash.
func (t *Template) Render(values map[string]string) (string, error) {
	parts := make([]string, 0, len(t.segments))
	for _, s := range t.segments {
		if s.variable == "" {
			parts = append(parts, s.literal)
			continue
		}
		v, ok := values[s.variable]
		if !ok || v == "" {
			return "", apperrors.Newf(apperrors.ErrInvalidArgument, "%s: missing value for {%s}", t.pattern, s.variable)
		}
		if strings.Contains(v, "/") {
			return "", apperrors.Newf(apperrors.ErrInvalidArgument, "%s: value %q for {%s} contains '/'", t.pattern, v, s.variable)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "/"), nil
}

// Match extracts the variables of name. It reports false when name does not
// have the shape of t.
func (t *Template) Match(name string) (map[string]string, bool) {
	parts := strings.Split(name, "/")
	if len(parts) != len(t.segments) {
		return nil, false
	}
	values := make(map[string]string, len(t.segments))
	for i, s := range t.segments {
		if s.variable == "" {
			if parts[i] != s.literal {
				return nil, false
			}
			continue
		}
		if parts[i] == "" {
			return nil, false
		}
		values[s.variable] = parts[i]
	}
	return values, true
}

func (t *Template) mustRender(values map[string]string) string {
	s, err := t.Render(values)
	if err != nil {
		// Malformed values are rejected when the name is parsed back.
		parts := make([]string, 0, len(t.segments))
		for _, seg := range t.segments {
			if seg.variable == "" {
				parts = append(parts, seg.literal)
			} else {
				parts = append(parts, values[seg.variable])
			}
		}
		return strings.Join(parts, "/")
	}
	return s
}
