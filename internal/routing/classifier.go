package routing

import (
	"fmt"
	"strings"
)

type RouteClass string

const (
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassPublicAPI   RouteClass = "public_api"
	RouteClassOps         RouteClass = "ops"
	// RouteClassUndeclared is what Classify returns for paths outside the
	// allowlist that do not look like an API.
	RouteClassUndeclared RouteClass = "undeclared"
)

// Classifier answers which class a request path belongs to and whether a
// method is declared for a route.
type Classifier struct {
	entrypoint string
	exact      map[string]RouteClass
	patterns   []pathPatternRoute
	declared   map[string]map[string]bool
}

type pathPatternRoute struct {
	pattern PathPattern
	rc      RouteClass
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, fmt.Errorf("allowlist: missing entrypoint %q", entrypoint)
	}
	if len(ep.Routes) == 0 {
		return nil, fmt.Errorf("allowlist: entrypoint %q has no routes", entrypoint)
	}

	c := &Classifier{
		entrypoint: entrypoint,
		exact:      make(map[string]RouteClass, len(ep.Routes)),
		declared:   make(map[string]map[string]bool, len(ep.Routes)),
	}
	for _, r := range ep.Routes {
		if err := validateRoute(r); err != nil {
			return nil, fmt.Errorf("allowlist: %w", err)
		}
		if c.declared[r.Path] == nil {
			c.declared[r.Path] = map[string]bool{}
		}
		for _, m := range r.Methods {
			c.declared[r.Path][strings.ToUpper(m)] = true
		}

		rc := RouteClass(r.RouteClass)
		if !strings.Contains(r.Path, "{") {
			c.exact[r.Path] = rc
			continue
		}
		p, ok := parsePathPattern(r.Path)
		if !ok {
			return nil, fmt.Errorf("allowlist: malformed route pattern %q", r.Path)
		}
		c.patterns = append(c.patterns, pathPatternRoute{pattern: p, rc: rc})
	}
	return c, nil
}

func (c *Classifier) Entrypoint() string { return c.entrypoint }

func (c *Classifier) Classify(path string) RouteClass {
	if rc, ok := c.exact[path]; ok {
		return rc
	}
	for _, p := range c.patterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}

	switch {
	case hasPrefixSegment(path, "/api/v1"):
		return RouteClassPublicAPI
	case isModuleAPI(path):
		return RouteClassInternalAPI
	default:
		return RouteClassUndeclared
	}
}

// Declared reports whether the allowlist names method on the raw route path,
// pattern placeholders included.
func (c *Classifier) Declared(method, path string) bool {
	return c.declared[path][strings.ToUpper(method)]
}

func hasPrefixSegment(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// isModuleAPI matches /{module}/api and anything below it.
func isModuleAPI(path string) bool {
	rest, ok := strings.CutPrefix(path, "/")
	if !ok {
		return false
	}
	module, after, ok := strings.Cut(rest, "/")
	if !ok || module == "" {
		return false
	}
	return hasPrefixSegment("/"+after, "/api")
}
