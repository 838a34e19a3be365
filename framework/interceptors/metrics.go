package interceptors

import (
	"context"
	"time"

	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/metrics"
)

// Metrics counts action calls and observes their duration, labelled by
// controller, action and outcome ("ok" or "error").
func Metrics(col *metrics.Collectors) core.Interceptor {
	return core.InterceptorFunc(func(ctx context.Context, controller, action string, params core.Params, next core.Core) (any, error) {
		start := time.Now()
		out, err := next.CallAction(ctx, controller, action, params)

		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		col.ObserveAction(controller, action, outcome, time.Since(start))
		return out, err
	})
}
