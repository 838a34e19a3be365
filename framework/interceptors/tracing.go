package interceptors

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
)

// TracerName is the instrumentation name used when Tracing gets no tracer.
const TracerName = "spiral.core"

// Tracing opens a span named "controller.action" around each call. A nil
// tracer uses the global provider.
func Tracing(tracer trace.Tracer) core.Interceptor {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return core.InterceptorFunc(func(ctx context.Context, controller, action string, params core.Params, next core.Core) (any, error) {
		ctx, span := tracer.Start(ctx, controller+"."+action,
			trace.WithAttributes(
				attribute.String("spiral.controller", controller),
				attribute.String("spiral.action", action),
				attribute.Int("spiral.params", len(params)),
			),
		)
		defer span.End()

		out, err := next.CallAction(ctx, controller, action, params)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("spiral.error_kind", errs.KindOf(err).String()))
			span.SetStatus(codes.Error, err.Error())
			return out, err
		}
		span.SetStatus(codes.Ok, "")
		return out, nil
	})
}
