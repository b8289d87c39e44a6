package routing

import (
	"net/http"
	"runtime/debug"
	"sort"
)

type Router struct {
	classifier *Classifier
	routes     map[string]map[string]routeEntry
	patterns   []*patternRoute

	// OnPanic observes a recovered handler panic before the 500 is written.
	OnPanic func(req *http.Request, recovered any, stack []byte)
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

type patternRoute struct {
	pattern PathPattern
	methods map[string]routeEntry
}

// RouteKey identifies one registered method and path.
type RouteKey struct {
	Method string
	Path   string
}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		routes:     make(map[string]map[string]routeEntry),
	}
}

// Handle registers h. Paths with {name} segments are matched as patterns and
// their values are exposed through http.Request.PathValue.
func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	entry := routeEntry{
		rc: rc,
		handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := debug.Stack()
					if r.OnPanic != nil {
						r.OnPanic(req, rec, stack)
					}
					WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			h.ServeHTTP(w, req)
		}),
	}

	if p, ok := parsePathPattern(path); ok {
		for _, pr := range r.patterns {
			if pr.pattern.raw == path {
				pr.methods[method] = entry
				return
			}
		}
		r.patterns = append(r.patterns, &patternRoute{pattern: p, methods: map[string]routeEntry{method: entry}})
		// More literal segments win: /x/{id}/add before /x/{id}/{sub}.
		sort.SliceStable(r.patterns, func(i, j int) bool {
			return r.patterns[i].pattern.literals > r.patterns[j].pattern.literals
		})
		return
	}

	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}
	r.routes[path][method] = entry
}

func (r *Router) HandleFunc(rc RouteClass, method string, path string, f func(http.ResponseWriter, *http.Request)) {
	r.Handle(rc, method, path, http.HandlerFunc(f))
}

// Routes lists every registered method and path, sorted.
func (r *Router) Routes() []RouteKey {
	var out []RouteKey
	for path, methods := range r.routes {
		for m := range methods {
			out = append(out, RouteKey{Method: m, Path: path})
		}
	}
	for _, pr := range r.patterns {
		for m := range pr.methods {
			out = append(out, RouteKey{Method: m, Path: pr.pattern.raw})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if methods, ok := r.routes[req.URL.Path]; ok {
		entry, ok := methods[req.Method]
		if !ok {
			WriteError(w, req, entrypointClass(methods, r.classifier.Classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		entry.handler.ServeHTTP(w, req)
		return
	}

	var matched map[string]routeEntry
	for _, pr := range r.patterns {
		params, ok := pr.pattern.Params(req.URL.Path)
		if !ok {
			continue
		}
		entry, ok := pr.methods[req.Method]
		if !ok {
			if matched == nil {
				matched = pr.methods
			}
			continue
		}
		for k, v := range params {
			req.SetPathValue(k, v)
		}
		entry.handler.ServeHTTP(w, req)
		return
	}
	if matched != nil {
		WriteError(w, req, entrypointClass(matched, r.classifier.Classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}
