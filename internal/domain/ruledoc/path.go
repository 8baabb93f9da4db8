package ruledoc

import (
	"fmt"
	"strings"
)

// Segment is one step of a field path: a map key, optionally marking "each
// element of the array at this key".
type Segment struct {
	Name        string
	EachElement bool
}

// Path is a parsed dotted field path. Paths are compiled once when a rule
// document is built, never re-parsed per validation call.
type Path struct {
	Raw      string
	Segments []Segment
}

// ParsePath parses a dotted path such as "incident.units[].unit_number".
// At most one []-marked segment is allowed.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("empty field path")
	}
	parts := strings.Split(raw, ".")
	segs := make([]Segment, 0, len(parts))
	arrays := 0
	for _, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("path %q has an empty segment", raw)
		}
		seg := Segment{Name: part}
		if strings.HasSuffix(part, "[]") {
			seg.Name = strings.TrimSuffix(part, "[]")
			seg.EachElement = true
			arrays++
			if seg.Name == "" {
				return Path{}, fmt.Errorf("path %q has an unnamed array segment", raw)
			}
		}
		segs = append(segs, seg)
	}
	if arrays > 1 {
		return Path{}, fmt.Errorf("path %q has more than one array segment", raw)
	}
	return Path{Raw: raw, Segments: segs}, nil
}

// HasArray reports whether any segment is array-marked.
func (p Path) HasArray() bool {
	for _, s := range p.Segments {
		if s.EachElement {
			return true
		}
	}
	return false
}

// Resolve descends through nested maps following the path. A missing
// intermediate key short-circuits to (nil, false). Array-marked segments
// resolve to the array value itself; per-element descent is the caller's
// concern.
func (p Path) Resolve(payload map[string]any) (any, bool) {
	var current any = payload
	for _, seg := range p.Segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg.Name]
		if !ok {
			return nil, false
		}
		current = v
		if seg.EachElement {
			// Stop at the array; the remaining segments apply per element.
			return current, true
		}
	}
	return current, true
}

// ResolveString resolves the path and coerces the value to a string.
func (p Path) ResolveString(payload map[string]any) (string, bool) {
	v, ok := p.Resolve(payload)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
