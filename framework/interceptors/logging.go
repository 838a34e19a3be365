package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
)

// Logging logs every action call with its duration. Failed calls log at
// warn level with the error kind; successful ones at debug.
func Logging(logger *zap.Logger) core.Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return core.InterceptorFunc(func(ctx context.Context, controller, action string, params core.Params, next core.Core) (any, error) {
		start := time.Now()
		out, err := next.CallAction(ctx, controller, action, params)

		fields := []zap.Field{
			zap.String("controller", controller),
			zap.String("action", action),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("action failed", append(fields,
				zap.Stringer("kind", errs.KindOf(err)),
				zap.Error(err),
			)...)
			return out, err
		}
		logger.Debug("action called", fields...)
		return out, nil
	})
}
