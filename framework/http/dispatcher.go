package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
)

// Scope bindings available to anything resolved while a request is handled.
const (
	ScopeName   = "http"
	BindRequest = "request"      // *http.Request
	BindWrapped = "http.request" // *Request
	BindID      = "request.id"   // string
	HeaderID    = "X-Request-ID"
)

// Dispatcher turns controller actions into http.Handlers. Every request runs
// in its own "http" scope and goes through Core, normally the interceptor
// pipeline.
//
//	d := gohttp.NewDispatcher(pipeline, app.Container, logger)
//	router.Method("GET", "/users/{id}", d.Handler("users", "show"))
type Dispatcher struct {
	Core      core.Core
	Container *container.Container
	Logger    *zap.Logger
	Debug     bool // expose server error messages
}

// NewDispatcher creates a Dispatcher; a nil logger discards output.
func NewDispatcher(c core.Core, root *container.Container, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{Core: c, Container: root, Logger: logger}
}

// Handler returns the handler for controller.action.
func (d *Dispatcher) Handler(controller, action string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = withRequestID(w, r)
		res := NewResponse(w)
		req := NewRequest(r)

		params, err := req.Params()
		if err != nil {
			res.Fail(err, true)
			return
		}

		var out any
		err = runRequestScope(d.parent(r.Context()), w, r, func(ctx context.Context) error {
			var err error
			out, err = d.Core.CallAction(ctx, controller, action, params)
			return err
		})
		if err != nil {
			if errs.HTTPStatus(errs.KindOf(err)) >= http.StatusInternalServerError {
				d.Logger.Error("request failed",
					zap.String("controller", controller),
					zap.String("action", action),
					zap.String("request_id", w.Header().Get(HeaderID)),
					zap.Error(err),
				)
			}
			res.Fail(err, d.Debug)
			return
		}
		res.Success(out)
	})
}

// HandlerFunc is Handler as an http.HandlerFunc.
func (d *Dispatcher) HandlerFunc(controller, action string) http.HandlerFunc {
	return d.Handler(controller, action).ServeHTTP
}

// parent is the scope opened by ScopeMiddleware, if any, else the root.
func (d *Dispatcher) parent(ctx context.Context) *container.Container {
	if c, ok := container.FromContext(ctx); ok {
		return c
	}
	return d.Container
}

// ScopeMiddleware runs each request inside an "http" scope of c with the
// request bindings in place, for handlers that resolve services themselves:
//
//	router.Middleware(gohttp.ScopeMiddleware(app.Container))
//	...
//	scope, _ := container.Active(r.Context())
func ScopeMiddleware(c *container.Container) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := runRequestScope(c, w, r, func(ctx context.Context) error {
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
			if err != nil {
				NewResponse(w).Fail(err, false)
			}
		})
	}
}

func runRequestScope(parent *container.Container, w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) error) error {
	r = withRequestID(w, r)
	id := RequestID(r.Context())

	return parent.RunScope(r.Context(), ScopeName, func(s *container.Container) error {
		s.Instance(BindRequest, r)
		s.Instance(BindWrapped, NewRequest(r))
		s.Instance(BindID, id)
		return nil
	}, func(ctx context.Context, _ *container.Container) error {
		return fn(ctx)
	})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request ctx belongs to, "" outside
// a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID assigns the request its id once and echoes it in the
// response header. Nested scopes reuse the id already on the context.
func withRequestID(w http.ResponseWriter, r *http.Request) *http.Request {
	if id := RequestID(r.Context()); id != "" {
		w.Header().Set(HeaderID, id)
		return r
	}
	id := requestID(r)
	w.Header().Set(HeaderID, id)
	return r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
}

// requestID keeps a well-formed incoming X-Request-ID, else mints one.
func requestID(r *http.Request) string {
	if id := r.Header.Get(HeaderID); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return uuid.NewString()
}
