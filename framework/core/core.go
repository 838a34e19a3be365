// Package core implements controller dispatch and the interceptor pipeline.
//
// A Core calls a controller action. Interceptors wrap a Core to add
// cross-cutting behaviour (logging, metrics, validation) and a Pipeline
// composes them in a fixed order:
//
//	p := core.NewPipeline(core.NewActionCore(app.Container),
//	    interceptors.Recover(),
//	    interceptors.Logging(logger),
//	)
//	result, err := p.CallAction(ctx, "users", "show", core.Params{"id": 1})
package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// Params carries the named arguments of an action call.
type Params map[string]any

// String returns the parameter formatted as a string, "" when absent.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the parameter as an int. Floats must be integral.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Core calls a controller action.
type Core interface {
	CallAction(ctx context.Context, controller, action string, params Params) (any, error)
}

// CoreFunc adapts a function to Core.
type CoreFunc func(ctx context.Context, controller, action string, params Params) (any, error)

func (f CoreFunc) CallAction(ctx context.Context, controller, action string, params Params) (any, error) {
	return f(ctx, controller, action, params)
}

// Interceptor wraps an action call. It either calls next or returns without
// reaching the controller.
type Interceptor interface {
	Process(ctx context.Context, controller, action string, params Params, next Core) (any, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, controller, action string, params Params, next Core) (any, error)

func (f InterceptorFunc) Process(ctx context.Context, controller, action string, params Params, next Core) (any, error) {
	return f(ctx, controller, action, params, next)
}
