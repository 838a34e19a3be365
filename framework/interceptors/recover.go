package interceptors

import (
	"context"

	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
)

// Recover turns a panic further down the chain into an Interceptor error.
func Recover() core.Interceptor {
	return core.InterceptorFunc(func(ctx context.Context, controller, action string, params core.Params, next core.Core) (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				out = nil
				err = errs.New(errs.Interceptor, "interceptors.Recover", controller+"."+action, "panic: %v", r)
			}
		}()
		return next.CallAction(ctx, controller, action, params)
	})
}
