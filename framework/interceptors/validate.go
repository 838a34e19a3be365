package interceptors

import (
	"context"

	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
	"github.com/km-arc/go-spiral/framework/http/validation"
)

// Validate checks params against the rules registered for
// "controller.action". Actions without rules pass through. A failure
// returns a Validation error wrapping the *validation.Errors bag:
//
//	var bag *validation.Errors
//	if errors.As(err, &bag) { ... }
func Validate(rules map[string]validation.Rules) core.Interceptor {
	return core.InterceptorFunc(func(ctx context.Context, controller, action string, params core.Params, next core.Core) (any, error) {
		key := controller + "." + action
		if r, ok := rules[key]; ok && len(r) > 0 {
			v := validation.Make(params, r)
			if v.Fails() {
				return nil, errs.Wrap(errs.Validation, "interceptors.Validate", key, v.Errors())
			}
		}
		return next.CallAction(ctx, controller, action, params)
	})
}
