package api

import (
	"net/http"
	"strings"

	"github.com/eliraz-refael/go-imposters/internal/api/handlers"
	"github.com/eliraz-refael/go-imposters/internal/response"
)

// Router is a simple HTTP router with path parameter support.
type Router struct {
	routes []route
}

type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
}

// NewRouter creates a new router.
func NewRouter() *Router {
	return &Router{}
}

// Handle registers a route.
func (rt *Router) Handle(method, pattern string, handler http.HandlerFunc) {
	rt.routes = append(rt.routes, route{method, pattern, handler})
}

// GET registers a GET route.
func (rt *Router) GET(pattern string, handler http.HandlerFunc) {
	rt.Handle("GET", pattern, handler)
}

// POST registers a POST route.
func (rt *Router) POST(pattern string, handler http.HandlerFunc) {
	rt.Handle("POST", pattern, handler)
}

// PUT registers a PUT route.
func (rt *Router) PUT(pattern string, handler http.HandlerFunc) {
	rt.Handle("PUT", pattern, handler)
}

// PATCH registers a PATCH route.
func (rt *Router) PATCH(pattern string, handler http.HandlerFunc) {
	rt.Handle("PATCH", pattern, handler)
}

// DELETE registers a DELETE route.
func (rt *Router) DELETE(pattern string, handler http.HandlerFunc) {
	rt.Handle("DELETE", pattern, handler)
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, route := range rt.routes {
		if route.method != r.Method {
			continue
		}

		params, ok := match(route.pattern, r.URL.Path)
		if !ok {
			continue
		}

		route.handler(w, handlers.WithParams(r, params))
		return
	}

	response.WriteError(w, http.StatusNotFound, response.ErrCodeNoSuchResource, "resource not found")
}

// match checks if a path matches a pattern and extracts parameters.
// Pattern format: /imposters/{id}/stubs/{stubId}
func match(pattern, path string) (map[string]string, bool) {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	if len(patternParts) != len(pathParts) {
		return nil, false
	}

	params := make(map[string]string)

	for i, part := range patternParts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			params[part[1:len(part)-1]] = pathParts[i]
		} else if part != pathParts[i] {
			return nil, false
		}
	}

	return params, true
}
