package container

import (
	"fmt"
	"reflect"

	"github.com/km-arc/go-spiral/framework/errs"
)

var (
	ctxType       = reflect.TypeOf((**Ctx)(nil)).Elem()
	containerType = reflect.TypeOf((**Container)(nil)).Elem()
	resolverType  = reflect.TypeOf((*Resolver)(nil)).Elem()
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
)

// BindConstructor registers a Go constructor function. Each parameter is
// resolved by the TypeKey of its type; *Ctx, *Container and Resolver
// parameters receive the live resolution values. The function must return
// T or (T, error).
//
//	func NewUserService(db *sqlx.DB, log *zap.Logger) *UserService { ... }
//
//	err := c.BindConstructor(container.KeyOf[*UserService](), NewUserService, true)
func (c *Container) BindConstructor(abstract string, fn any, singleton bool) error {
	call, err := constructor(fn)
	if err != nil {
		return errs.Wrap(errs.Autowire, "container.BindConstructor", abstract, err)
	}
	c.bind(abstract, func(ctx *Ctx) (any, error) { return call(ctx) }, singleton)
	return nil
}

// ProvideConstructor binds fn under the TypeKey of its first result.
func (c *Container) ProvideConstructor(fn any, singleton bool) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func || t.NumOut() == 0 {
		return errs.New(errs.Autowire, "container.ProvideConstructor", fmt.Sprintf("%T", fn),
			"expected a constructor function")
	}
	return c.BindConstructor(typeKey(t.Out(0)), fn, singleton)
}

// Invoke calls fn with its parameters resolved from the container and
// returns fn's first result (nil for functions returning only an error or
// nothing).
func (c *Container) Invoke(fn any) (any, error) {
	call, err := invoker(fn)
	if err != nil {
		return nil, errs.Wrap(errs.Autowire, "container.Invoke", fmt.Sprintf("%T", fn), err)
	}
	root := &Ctx{Alias: "invoke", Abstract: fmt.Sprintf("invoke(%T)", fn), Container: c}
	return call(root)
}

func constructor(fn any) (func(*Ctx) (any, error), error) {
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %T", fn)
	}
	switch {
	case ft.NumOut() == 1 && ft.Out(0) != errorType:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("constructor %s must return T or (T, error)", ft)
	}
	return invoker(fn)
}

func invoker(fn any) (func(*Ctx) (any, error), error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("expected a function, got %T", fn)
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("variadic function %s cannot be autowired", ft)
	}
	if ft.NumOut() > 2 {
		return nil, fmt.Errorf("function %s returns too many values", ft)
	}

	return func(ctx *Ctx) (any, error) {
		args := make([]reflect.Value, ft.NumIn())
		for i := range args {
			arg, err := argument(ctx, ft.In(i), i)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return results(fv.Call(args))
	}, nil
}

func argument(ctx *Ctx, t reflect.Type, index int) (reflect.Value, error) {
	switch t {
	case ctxType:
		return reflect.ValueOf(ctx), nil
	case containerType:
		return reflect.ValueOf(ctx.Container), nil
	case resolverType:
		return reflect.ValueOf(Resolver(ctx)), nil
	}

	key := typeKey(t)
	param := fmt.Sprintf("#%d %s", index, t)
	v, err := ctx.Container.resolve(key, ctx, param, t)
	if err != nil {
		return reflect.Value{}, errs.Wrap(errs.Autowire, "container.autowire", ctx.Abstract, err)
	}
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, errs.New(errs.Autowire, "container.autowire", ctx.Abstract,
			"parameter %s: %s resolved to %s", param, key, rv.Type())
	}
	return rv, nil
}

func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		if err := asError(out[1]); err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
