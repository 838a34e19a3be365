// Package routing maps URLs onto handlers and controller actions.
//
//	r := routing.New(routing.WithLogger(logger), routing.WithDispatcher(d))
//	r.Prefix("/api", func(api *routing.Router) {
//	    api.Action(http.MethodGet, "/users/{id}", "users", "show")
//	    api.ResourceActions("/posts", "posts")
//	})
package routing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	gohttp "github.com/km-arc/go-spiral/framework/http"
	"github.com/km-arc/go-spiral/framework/metrics"
)

// Router wraps chi.Router with grouping and action helpers.
type Router struct {
	mux        chi.Router
	dispatcher *gohttp.Dispatcher
}

// Option configures New.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	dispatcher *gohttp.Dispatcher
	metrics    *metrics.Collectors
}

// WithLogger logs every request through logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDispatcher enables Action and ResourceActions.
func WithDispatcher(d *gohttp.Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithMetrics records request metrics on col.
func WithMetrics(col *metrics.Collectors) Option {
	return func(o *options) { o.metrics = col }
}

// New creates a Router with request logging, panic recovery and RealIP.
func New(opts ...Option) *Router {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()
	r.Use(gohttp.RequestLogger(o.logger))
	if o.metrics != nil {
		r.Use(o.metrics.InstrumentHandler)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	return &Router{mux: r, dispatcher: o.dispatcher}
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Patch(pattern string, h http.HandlerFunc)  { r.mux.Patch(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// Method registers h for one method.
func (r *Router) Method(method, pattern string, h http.Handler) { r.mux.Method(method, pattern, h) }

// Handle registers h for every method.
func (r *Router) Handle(pattern string, h http.Handler) { r.mux.Handle(pattern, h) }

// Any registers a handler for all common HTTP methods.
func (r *Router) Any(pattern string, h http.HandlerFunc) {
	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"} {
		r.mux.Method(m, pattern, h)
	}
}

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group sharing the parent's prefix; middleware
// added inside stays inside.
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(&Router{mux: mx, dispatcher: r.dispatcher})
	})
}

// Prefix creates a sub-router mounted under pattern.
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx, dispatcher: r.dispatcher})
	})
}

// ── Middleware ───────────────────────────────────────────────────────────────

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// ── Named / Resource routes ──────────────────────────────────────────────────

// ResourceController handles the RESTful routes registered by Resource.
//
//	GET    /photos           → c.Index
//	POST   /photos           → c.Store
//	GET    /photos/{id}      → c.Show
//	PUT    /photos/{id}      → c.Update
//	DELETE /photos/{id}      → c.Destroy
type ResourceController interface {
	Index(w http.ResponseWriter, r *http.Request)
	Store(w http.ResponseWriter, r *http.Request)
	Show(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Destroy(w http.ResponseWriter, r *http.Request)
}

// Resource registers the RESTful routes of c under pattern.
func (r *Router) Resource(pattern string, c ResourceController) {
	r.mux.Get(pattern, c.Index)
	r.mux.Post(pattern, c.Store)
	r.mux.Get(pattern+"/{id}", c.Show)
	r.mux.Put(pattern+"/{id}", c.Update)
	r.mux.Patch(pattern+"/{id}", c.Update)
	r.mux.Delete(pattern+"/{id}", c.Destroy)
}

// ── Controller actions ───────────────────────────────────────────────────────

// Action routes method+pattern to controller.action through the dispatcher.
// It panics when the router was built without WithDispatcher.
func (r *Router) Action(method, pattern, controller, action string) {
	if r.dispatcher == nil {
		panic("routing: Action " + controller + "." + action + " needs a router built WithDispatcher")
	}
	r.mux.Method(method, pattern, r.dispatcher.Handler(controller, action))
}

// ResourceActions is Resource for a container-registered controller whose
// actions are named index, store, show, update and destroy.
func (r *Router) ResourceActions(pattern, controller string) {
	r.Action(http.MethodGet, pattern, controller, "index")
	r.Action(http.MethodPost, pattern, controller, "store")
	r.Action(http.MethodGet, pattern+"/{id}", controller, "show")
	r.Action(http.MethodPut, pattern+"/{id}", controller, "update")
	r.Action(http.MethodPatch, pattern+"/{id}", controller, "update")
	r.Action(http.MethodDelete, pattern+"/{id}", controller, "destroy")
}

// Routes lists registered routes as "METHOD pattern", in chi walk order.
func (r *Router) Routes() []string {
	var out []string
	_ = chi.Walk(r.mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, method+" "+route)
		return nil
	})
	return out
}

// ── Static files ─────────────────────────────────────────────────────────────

// Static serves a filesystem at the given prefix.
// e.g. router.Static("/public", "./public")
func (r *Router) Static(prefix, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	r.mux.Get(prefix+"/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL param.
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler so Router can be passed to http.ListenAndServe.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler (for testing etc.).
func (r *Router) Handler() http.Handler {
	return r.mux
}
