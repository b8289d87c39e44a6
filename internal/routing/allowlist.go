package routing

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowlist is config/routing/allowlist.yaml: every route an entrypoint may
// serve, with its class.
type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, fmt.Errorf("allowlist: %w", err)
	}
	if a.Version != 1 {
		return Allowlist{}, fmt.Errorf("allowlist: unsupported version %d", a.Version)
	}
	if len(a.Entrypoints) == 0 {
		return Allowlist{}, fmt.Errorf("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		seen := make(map[string]bool, len(ep.Routes))
		for _, r := range ep.Routes {
			if err := validateRoute(r); err != nil {
				return Allowlist{}, fmt.Errorf("allowlist: %s: %w", name, err)
			}
			if seen[r.Path] {
				return Allowlist{}, fmt.Errorf("allowlist: %s: %s listed twice", name, r.Path)
			}
			seen[r.Path] = true
		}
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}

func validateRoute(r Route) error {
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("route path %q must start with /", r.Path)
	}
	switch RouteClass(r.RouteClass) {
	case RouteClassInternalAPI, RouteClassPublicAPI, RouteClassOps:
	default:
		return fmt.Errorf("route %s has unknown class %q", r.Path, r.RouteClass)
	}
	if len(r.Methods) == 0 {
		return fmt.Errorf("route %s has no methods", r.Path)
	}
	for _, m := range r.Methods {
		if !allowedMethods[strings.ToUpper(m)] {
			return fmt.Errorf("route %s has unknown method %q", r.Path, m)
		}
	}
	return nil
}
