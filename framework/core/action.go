package core

import (
	"context"
	"sort"

	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/errs"
)

// ActionFunc is one controller action.
type ActionFunc func(ctx context.Context, params Params) (any, error)

// Actions maps action names to handlers.
type Actions map[string]ActionFunc

// Names returns the sorted action names.
func (a Actions) Names() []string {
	out := make([]string, 0, len(a))
	for name := range a {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Controller exposes its actions explicitly instead of being discovered by
// reflection.
//
//	type UserController struct{ repo *Repo }
//
//	func (c *UserController) Actions() core.Actions {
//	    return core.Actions{"show": c.Show, "store": c.Store}
//	}
type Controller interface {
	Actions() Actions
}

// ActionCore resolves controllers from the container and calls the action.
// The container active on ctx (see container.RunScope) takes precedence, so
// controllers built per request see request-scoped bindings.
type ActionCore struct {
	container *container.Container
}

var _ Core = (*ActionCore)(nil)

// NewActionCore creates an ActionCore falling back to c when ctx carries no
// scope.
func NewActionCore(c *container.Container) *ActionCore {
	return &ActionCore{container: c}
}

// CallAction resolves controller and invokes action with params.
func (a *ActionCore) CallAction(ctx context.Context, controller, action string, params Params) (any, error) {
	c, ok := container.FromContext(ctx)
	if !ok {
		c = a.container
	}
	if c == nil {
		return nil, errs.New(errs.Scope, "core.CallAction", controller, "no container to resolve controllers from")
	}

	if !c.Has(controller) {
		return nil, errs.New(errs.ControllerNotFound, "core.CallAction", controller, "controller is not registered")
	}
	inst, err := c.Make(controller)
	if err != nil {
		return nil, err
	}

	ctrl, ok := inst.(Controller)
	if !ok {
		return nil, errs.New(errs.BadAction, "core.CallAction", controller, "%T does not implement core.Controller", inst)
	}

	fn, ok := ctrl.Actions()[action]
	if !ok || fn == nil {
		return nil, errs.New(errs.ActionNotFound, "core.CallAction", controller+"."+action, "action is not defined")
	}
	if params == nil {
		params = Params{}
	}
	return fn(ctx, params)
}
