package container

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/km-arc/go-spiral/framework/errs"
)

// ── Scopes ────────────────────────────────────────────────────────────────────

// Scope creates a child container. Lookups fall through to c, bindings made
// on the child never leak into c. Singletons declared by c are still built
// and cached in c.
//
//	scope := app.Scope("http")
//	defer scope.Close()
//	scope.Instance("request", r)
func (c *Container) Scope(name string) *Container {
	child := newContainer(name, c)
	child.id = uuid.NewString()
	return child
}

// ID returns the unique id of a scope; empty for the root container.
func (c *Container) ID() string { return c.id }

// OnClose registers a finalizer run when the container is closed.
// Finalizers run in reverse registration order.
func (c *Container) OnClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalizers = append(c.finalizers, fn)
}

// Close runs finalizers, then closes every singleton built by this container
// that implements io.Closer, newest first. Closing twice is a no-op.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	finalizers := c.finalizers
	owned := c.owned
	c.finalizers = nil
	c.owned = nil
	c.mu.Unlock()

	var errList []error
	for i := len(finalizers) - 1; i >= 0; i-- {
		if err := finalizers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	for i := len(owned) - 1; i >= 0; i-- {
		if closer, ok := owned[i].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errList = append(errList, err)
			}
		}
	}
	if len(errList) > 0 {
		return errs.Wrap(errs.Scope, "container.Close", c.name, errors.Join(errList...))
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Container) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// RunScope opens a child scope, lets configure bind scope-local values, and
// runs fn with the scope active on ctx. The scope is closed exactly once when
// fn returns, fails or panics; a panic is re-raised after cleanup.
//
//	err := app.RunScope(ctx, "job", func(s *container.Container) error {
//	    s.Instance("job.id", id)
//	    return nil
//	}, func(ctx context.Context, s *container.Container) error {
//	    return handle(ctx)
//	})
func (c *Container) RunScope(
	ctx context.Context,
	name string,
	configure func(scope *Container) error,
	fn func(ctx context.Context, scope *Container) error,
) (err error) {
	scope := c.Scope(name)
	defer func() {
		recovered := recover()
		if cerr := scope.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if recovered != nil {
			panic(recovered)
		}
	}()

	if configure != nil {
		if err := configure(scope); err != nil {
			return errs.Wrap(errs.Scope, "container.RunScope", name, err)
		}
	}
	return fn(WithContainer(ctx, scope), scope)
}

// ── Context passing ───────────────────────────────────────────────────────────

type ctxKey struct{}

// WithContainer returns a copy of ctx whose active container is c.
func WithContainer(ctx context.Context, c *Container) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the active container carried by ctx.
func FromContext(ctx context.Context) (*Container, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Container)
	return c, ok && c != nil
}

// Active is like FromContext but returns a Scope error when ctx carries no
// container.
func Active(ctx context.Context) (*Container, error) {
	c, ok := FromContext(ctx)
	if !ok {
		return nil, errs.New(errs.Scope, "container.FromContext", "", "no active container scope")
	}
	return c, nil
}

// MustFromContext is like Active but panics with the Scope error.
func MustFromContext(ctx context.Context) *Container {
	c, err := Active(ctx)
	if err != nil {
		panic(err)
	}
	return c
}
