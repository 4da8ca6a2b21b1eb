// File: router/pattern.go
// Package router compiles endpoint path patterns and matches request
// paths against them, binding named path variables.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package router

import (
	"fmt"
	"strings"
)

// segment is one path element: either a literal or a :name template.
type segment struct {
	literal string
	param   string
}

// Pattern is a compiled path pattern. Patterns are either fully literal
// ("/echo") or templated ("/rooms/:room/users/:user"); templated segments
// bind named path variables on match.
type Pattern struct {
	raw      string
	segments []segment
	literals int
}

// Compile parses and validates a path pattern.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, fmt.Errorf("pattern %q: must begin with '/'", pattern)
	}
	parts := strings.Split(pattern[1:], "/")
	p := &Pattern{raw: pattern, segments: make([]segment, 0, len(parts))}
	seen := make(map[string]bool)
	for _, part := range parts {
		if strings.HasPrefix(part, ":") {
			name := part[1:]
			if name == "" {
				return nil, fmt.Errorf("pattern %q: empty parameter name", pattern)
			}
			if seen[name] {
				return nil, fmt.Errorf("pattern %q: duplicate parameter %q", pattern, name)
			}
			seen[name] = true
			p.segments = append(p.segments, segment{param: name})
			continue
		}
		if strings.Contains(part, ":") {
			return nil, fmt.Errorf("pattern %q: ':' allowed only at segment start", pattern)
		}
		p.segments = append(p.segments, segment{literal: part})
		p.literals++
	}
	return p, nil
}

// String returns the original pattern text.
func (p *Pattern) String() string { return p.raw }

// IsLiteral reports whether the pattern has no templated segments.
func (p *Pattern) IsLiteral() bool { return p.literals == len(p.segments) }

// LiteralSegments returns the number of non-templated segments, used to
// order overlapping templated patterns by specificity.
func (p *Pattern) LiteralSegments() int { return p.literals }

// Match tests path (no query string) against the pattern. On success it
// returns the bound path variables; literal patterns return a nil map.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	if path == "" || path[0] != '/' {
		return nil, false
	}
	parts := strings.Split(path[1:], "/")
	if len(parts) != len(p.segments) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range p.segments {
		if seg.param != "" {
			if parts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.param] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	return params, true
}
