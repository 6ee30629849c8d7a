package server

import (
	"net/http"
	"slices"
	"strings"
)

// BasicRouter routes method-qualified patterns through an [http.ServeMux].
//
// Patterns may carry {wildcards} readable with [http.Request.PathValue]. A request whose path matches but
// whose method does not gets a 405 with an Allow header.
type BasicRouter struct {
	mux      *http.ServeMux
	chain    []Middleware
	patterns []string
}

var (
	_ Router  = (*BasicRouter)(nil)
	_ Handler = (*BasicRouter)(nil)
)

func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends middleware. The first one added is the outermost.
//
// Routes registered before the call are not wrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.chain = append(r.chain, middleware...)
}

// Handle registers handler for "METHOD path".
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mount(strings.ToUpper(method)+" "+path, r.Apply(handler))
}

func (r *BasicRouter) HandleFunc(method, path string, fn http.HandlerFunc) {
	r.Handle(method, path, fn)
}

// Handler mounts every pattern returned by [Handler.Routes], as in "DELETE /sessions/{id}", on one wrapped handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, pattern := range handler.Routes() {
		r.mount(pattern, wrapped)
	}
}

func (r *BasicRouter) mount(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
	r.patterns = append(r.patterns, pattern)
}

// Routes lists the registered patterns in sorted order.
func (r *BasicRouter) Routes() []string {
	routes := slices.Clone(r.patterns)
	slices.Sort(routes)
	return routes
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler in the current middleware chain.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(r.chain) {
		handler = mw(handler)
	}
	return handler
}
