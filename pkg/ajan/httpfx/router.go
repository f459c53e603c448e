package httpfx

import (
	"net/http"
	"strings"

	"github.com/eser/relayq/pkg/ajan/httpfx/uris"
)

// Router is a thin wrapper over net/http.ServeMux: it records Route
// metadata (for the openapi module) alongside the mux registration, and
// runs a chain of router-wide middleware ahead of each route's own
// handlers, matching the chain-of-Handler shape exercised by
// context_test.go's TestContext_HandlerChain.
type Router struct {
	path     string
	mux      *http.ServeMux
	handlers []Handler
	routes   []*Route
}

// NewRouter constructs a Router mounted under path (commonly "/").
func NewRouter(path string) *Router {
	return &Router{
		path:     path,
		mux:      http.NewServeMux(),
		handlers: nil,
		routes:   nil,
	}
}

// GetPath returns the path this router (or sub-router, via Group) is
// mounted under.
func (router *Router) GetPath() string {
	return router.path
}

// GetMux returns the underlying mux, e.g. to mount it on an
// *http.Server or to register stdlib handlers directly (profiling
// module).
func (router *Router) GetMux() *http.ServeMux {
	return router.mux
}

// GetHandlers returns the router-wide middleware registered via Use.
func (router *Router) GetHandlers() []Handler {
	return router.handlers
}

// GetRoutes returns every route registered directly on this router,
// used by the openapi module to build its spec.
func (router *Router) GetRoutes() []*Route {
	return router.routes
}

// Group returns a sub-router mounted under path+prefix, sharing the same
// underlying mux and inheriting a copy of the parent's middleware chain
// so routes registered on it still run the parent's Use handlers.
func (router *Router) Group(prefix string) *Router {
	handlers := make([]Handler, len(router.handlers))
	copy(handlers, router.handlers)

	return &Router{
		path:     joinPath(router.path, prefix),
		mux:      router.mux,
		handlers: handlers,
		routes:   nil,
	}
}

// Use appends router-wide middleware, run ahead of every route's own
// handlers, in registration order.
func (router *Router) Use(handlers ...Handler) {
	router.handlers = append(router.handlers, handlers...)
}

// Route registers pattern (a net/http 1.22+ method+wildcard pattern,
// e.g. "GET /queues/{name}") under this router's path, with the given
// handler chain prefixed by the router's middleware. Returns the Route
// so callers can attach OpenAPI metadata (HasSummary, HasResponse, ...).
func (router *Router) Route(pattern string, handlers ...Handler) *Route {
	method, rawPath, found := strings.Cut(pattern, " ")
	if !found {
		rawPath = method
		method = ""
	}

	fullPath := joinPath(router.path, rawPath)

	fullPattern := fullPath
	if method != "" {
		fullPattern = method + " " + fullPath
	}

	parsed, err := uris.ParsePattern(fullPattern)
	if err != nil {
		panic(err)
	}

	chain := make([]Handler, 0, len(router.handlers)+len(handlers))
	chain = append(chain, router.handlers...)
	chain = append(chain, handlers...)

	route := &Route{ //nolint:exhaustruct
		Pattern:  parsed,
		Handlers: handlers,
	}

	route.MuxHandlerFunc = func(w http.ResponseWriter, r *http.Request) {
		ctx := &Context{ //nolint:exhaustruct
			Request:        r,
			ResponseWriter: w,
			handlers:       chain,
			index:          -1,
		}

		result := ctx.Next()

		if result.RedirectToURI() != "" {
			http.Redirect(w, r, result.RedirectToURI(), result.StatusCode())

			return
		}

		w.WriteHeader(result.StatusCode())

		if len(result.Body()) > 0 {
			_, _ = w.Write(result.Body())
		}
	}

	router.mux.HandleFunc(fullPattern, route.MuxHandlerFunc)
	router.routes = append(router.routes, route)

	return route
}

// joinPath joins a router's mount path with a route's own path segment,
// treating "" and "/" as the identity prefix so NewRouter("/") composed
// with "/test" yields "/test", not "//test".
func joinPath(prefix string, p string) string {
	if prefix == "" || prefix == "/" {
		if p == "" {
			return "/"
		}

		return p
	}

	prefix = strings.TrimSuffix(prefix, "/")

	if p == "" || p == "/" {
		return prefix
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return prefix + p
}
