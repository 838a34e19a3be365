package core

import (
	"context"

	"github.com/km-arc/go-spiral/framework/errs"
)

// Pipeline is an immutable interceptor chain around a Core. The first
// interceptor is the outermost: a call flows i0 → i1 → … → core and the
// result unwinds in reverse.
type Pipeline struct {
	core         Core
	interceptors []Interceptor
}

var _ Core = (*Pipeline)(nil)

// NewPipeline builds a pipeline; nil interceptors are skipped.
func NewPipeline(c Core, interceptors ...Interceptor) *Pipeline {
	p := &Pipeline{core: c}
	for _, i := range interceptors {
		if i != nil {
			p.interceptors = append(p.interceptors, i)
		}
	}
	return p
}

// With returns a new pipeline with interceptors appended innermost. The
// receiver is left unchanged.
func (p *Pipeline) With(interceptors ...Interceptor) *Pipeline {
	all := make([]Interceptor, 0, len(p.interceptors)+len(interceptors))
	all = append(all, p.interceptors...)
	all = append(all, interceptors...)
	return NewPipeline(p.core, all...)
}

// Interceptors returns a copy of the chain, outermost first.
func (p *Pipeline) Interceptors() []Interceptor {
	return append([]Interceptor(nil), p.interceptors...)
}

// CallAction runs the chain.
func (p *Pipeline) CallAction(ctx context.Context, controller, action string, params Params) (any, error) {
	if p.core == nil {
		return nil, errs.New(errs.Interceptor, "core.Pipeline", controller+"."+action, "pipeline has no core")
	}
	return p.step(0).CallAction(ctx, controller, action, params)
}

// step returns the Core that continues the chain at interceptor i.
func (p *Pipeline) step(i int) Core {
	if i >= len(p.interceptors) {
		return p.core
	}
	return CoreFunc(func(ctx context.Context, controller, action string, params Params) (any, error) {
		return p.interceptors[i].Process(ctx, controller, action, params, p.step(i+1))
	})
}
