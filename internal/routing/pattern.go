package routing

import "strings"

// PathPattern is a route path whose {name} segments match any single
// non-empty segment.
type PathPattern struct {
	raw      string
	segments []string
	literals int
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}
	if raw == "" || raw[0] != '/' {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	literals := 0
	for _, s := range parts {
		if s == "" {
			return PathPattern{}, false
		}
		if strings.Contains(s, "{") || strings.Contains(s, "}") {
			if !isParamSegment(s) {
				return PathPattern{}, false
			}
			continue
		}
		literals++
	}
	return PathPattern{raw: raw, segments: parts, literals: literals}, true
}

func (p PathPattern) String() string { return p.raw }

func (p PathPattern) Match(path string) bool {
	_, ok := p.Params(path)
	return ok
}

// Params matches path and returns the values bound to the pattern's
// parameters.
func (p PathPattern) Params(path string) (map[string]string, bool) {
	if p.raw == "" {
		return nil, false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return nil, false
	}
	var params map[string]string
	for i, want := range p.segments {
		got := in[i]
		if got == "" {
			return nil, false
		}
		if isParamSegment(want) {
			if params == nil {
				params = make(map[string]string, len(p.segments)-p.literals)
			}
			params[want[1:len(want)-1]] = got
			continue
		}
		if got != want {
			return nil, false
		}
	}
	return params, true
}

func splitPathSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2
}
