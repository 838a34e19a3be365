package container

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/km-arc/go-spiral/framework/errs"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Factory builds a concrete value. ctx describes the resolution in progress
// and resolves nested dependencies through ctx.Make.
type Factory func(ctx *Ctx) (any, error)

// binding holds a registered factory and whether it is a singleton.
type binding struct {
	factory   Factory
	singleton bool
}

// Extender wraps an already-resolved instance with decorator logic.
type Extender func(instance any, c *Container) any

// Resolver is anything that can resolve an abstract: a *Container, a scope,
// or a *Ctx inside a factory.
type Resolver interface {
	Make(abstract string) (any, error)
}

const maxAliasDepth = 32

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the IoC container.
//
// It supports:
//   - Bind / Singleton / Instance / Alias
//   - Make / Resolve (generic) with circular dependency detection
//   - Tags (group multiple abstractions under one tag)
//   - Extend (decorate resolved instances)
//   - Contextual binding (when A needs B, give it C)
//   - Rebound and after-resolving callbacks
//   - Child scopes (see Scope / RunScope)
type Container struct {
	mu sync.RWMutex

	name   string
	id     string
	parent *Container

	// abstract → binding
	bindings map[string]*binding

	// abstract → resolved singleton instance
	instances map[string]any

	// alias → abstract
	aliases map[string]string

	// abstract → extender funcs
	extenders map[string][]Extender

	// tag → []abstract
	tags map[string][]string

	// contextual: when[concrete][abstract] = factory
	contextual map[string]map[string]Factory

	reboundCallbacks map[string][]func(any)
	afterResolving   []func(string, any)

	// singletons built by this container, in build order, closed on Close
	owned      []any
	finalizers []func() error
	closed     bool

	flight singleflight.Group
}

// New creates an empty root container.
func New() *Container {
	return newContainer("root", nil)
}

func newContainer(name string, parent *Container) *Container {
	c := &Container{
		name:             name,
		parent:           parent,
		bindings:         make(map[string]*binding),
		instances:        make(map[string]any),
		aliases:          make(map[string]string),
		extenders:        make(map[string][]Extender),
		tags:             make(map[string][]string),
		contextual:       make(map[string]map[string]Factory),
		reboundCallbacks: make(map[string][]func(any)),
	}
	// the container resolves itself
	c.instances["container"] = c
	return c
}

// Name returns the scope name ("root" for New()).
func (c *Container) Name() string { return c.name }

// Parent returns the enclosing container, nil for the root.
func (c *Container) Parent() *Container { return c.parent }

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers a transient factory: every Make builds a new value.
//
//	c.Bind("mailer", func(ctx *container.Ctx) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](ctx, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return mail.NewSMTP(cfg.Mail), nil
//	})
func (c *Container) Bind(abstract string, factory Factory) {
	c.bind(abstract, factory, false)
}

// Singleton registers a factory whose result is cached after the first
// resolution. Concurrent first resolutions build the value exactly once.
func (c *Container) Singleton(abstract string, factory Factory) {
	c.bind(abstract, factory, true)
}

// Instance registers a pre-built value.
func (c *Container) Instance(abstract string, instance any) {
	key := c.canonical(abstract)
	c.mu.Lock()
	delete(c.bindings, key)
	c.instances[key] = instance
	c.mu.Unlock()
	c.fireRebound(key, instance)
}

func (c *Container) bind(abstract string, factory Factory, singleton bool) {
	key := c.canonical(abstract)

	c.mu.Lock()
	// drop the cached instance so it is rebuilt with the new factory
	_, wasResolved := c.instances[key]
	delete(c.instances, key)
	c.bindings[key] = &binding{factory: factory, singleton: singleton}
	hasListeners := len(c.reboundCallbacks[key]) > 0
	c.mu.Unlock()

	if wasResolved && hasListeners {
		if inst, err := c.Make(key); err == nil {
			c.fireRebound(key, inst)
		}
	}
}

// Alias registers an alternative name for an abstract.
//
//	c.Alias("cache", "cache.store")
func (c *Container) Alias(abstract, alias string) error {
	if abstract == alias {
		return errs.New(errs.Container, "container.Alias", alias, "[%s] is aliased to itself", alias)
	}
	target := c.canonical(abstract)
	if target == alias {
		return errs.New(errs.Container, "container.Alias", alias, "alias cycle %s -> %s", alias, abstract)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = target
	return nil
}

// ── Extend ────────────────────────────────────────────────────────────────────

// Extend decorates the resolved instance of an abstract.
//
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return instance.(*zap.Logger).Named("app")
//	})
func (c *Container) Extend(abstract string, fn Extender) {
	key := c.canonical(abstract)

	c.mu.Lock()
	c.extenders[key] = append(c.extenders[key], fn)
	inst, resolved := c.instances[key]
	c.mu.Unlock()
	if !resolved {
		return
	}

	// re-apply to the cached singleton outside the lock; fn may resolve
	inst = fn(inst, c)
	c.mu.Lock()
	c.instances[key] = inst
	c.mu.Unlock()
	c.fireRebound(key, inst)
}

// ── Tags ──────────────────────────────────────────────────────────────────────

// Tag associates multiple abstracts under a named group.
//
//	c.Tag([]string{"report.cpu", "report.memory"}, "reports")
func (c *Container) Tag(abstracts []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = append(c.tags[tag], abstracts...)
}

// TaggedAbstracts returns the abstracts registered under a tag, parents
// first.
func (c *Container) TaggedAbstracts(tag string) []string {
	var abstracts []string
	for _, cur := range c.chain() {
		cur.mu.RLock()
		abstracts = append(abstracts, cur.tags[tag]...)
		cur.mu.RUnlock()
	}
	return abstracts
}

// Tagged resolves all abstracts registered under a tag, parents first.
func (c *Container) Tagged(tag string) ([]any, error) {
	abstracts := c.TaggedAbstracts(tag)
	result := make([]any, 0, len(abstracts))
	for _, abs := range abstracts {
		inst, err := c.Make(abs)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, nil
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Make resolves an abstract, starting a new resolution chain.
func (c *Container) Make(abstract string) (any, error) {
	return c.resolve(abstract, nil, "", nil)
}

// Get is an alias of Make.
func (c *Container) Get(abstract string) (any, error) { return c.Make(abstract) }

// MustMake is like Make but panics with the resolution error.
func (c *Container) MustMake(abstract string) any {
	inst, err := c.Make(abstract)
	if err != nil {
		panic(err)
	}
	return inst
}

func (c *Container) resolve(abstract string, parent *Ctx, param string, typ reflect.Type) (any, error) {
	key := c.canonical(abstract)
	ctx := &Ctx{
		Alias:     abstract,
		Abstract:  key,
		Parameter: param,
		Type:      typ,
		Container: c,
		Parent:    parent,
	}
	if parent != nil {
		ctx.Depth = parent.Depth + 1
	}
	if err := ctx.checkCycle(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, errs.New(errs.Scope, "container.Make", key, "scope %q is closed", c.name)
	}

	if parent != nil {
		if f := c.lookupContextual(parent.Abstract, key); f != nil {
			return c.run(ctx, f)
		}
	}

	owner, inst, found, b := c.lookup(key)
	switch {
	case found:
		return inst, nil
	case b == nil:
		return nil, errs.New(errs.NotFound, "container.Make", key,
			"no binding registered (path: %s)", ctx.pathString())
	case b.singleton:
		// singletons live in the container that declares them
		ctx.Container = owner
		ctx.Singleton = true
		return owner.buildSingleton(ctx, b)
	default:
		return c.run(ctx, b.factory)
	}
}

// lookup walks the scope chain for key and returns the first container that
// holds an instance or a binding for it.
func (c *Container) lookup(key string) (*Container, any, bool, *binding) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		inst, ok := cur.instances[key]
		b := cur.bindings[key]
		cur.mu.RUnlock()
		if ok {
			return cur, inst, true, nil
		}
		if b != nil {
			return cur, nil, false, b
		}
	}
	return nil, nil, false, nil
}

func (c *Container) buildSingleton(ctx *Ctx, b *binding) (any, error) {
	built := false
	v, err, _ := c.flight.Do(ctx.Abstract, func() (any, error) {
		c.mu.RLock()
		inst, ok := c.instances[ctx.Abstract]
		c.mu.RUnlock()
		if ok {
			return inst, nil
		}

		inst, err := c.build(ctx, b.factory)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// a concurrent rebind replaced the binding; do not cache a stale value
		if c.bindings[ctx.Abstract] == b {
			c.instances[ctx.Abstract] = inst
			c.owned = append(c.owned, inst)
		}
		c.mu.Unlock()
		built = true
		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	// callbacks may resolve services that depend on this singleton, so they
	// run once it is cached and the flight has finished
	if built {
		c.fireAfterResolving(ctx.Abstract, v)
	}
	return v, nil
}

// run executes a factory, then applies extenders and callbacks.
func (c *Container) run(ctx *Ctx, f Factory) (any, error) {
	inst, err := c.build(ctx, f)
	if err != nil {
		return nil, err
	}
	c.fireAfterResolving(ctx.Abstract, inst)
	return inst, nil
}

// build executes a factory and applies extenders.
func (c *Container) build(ctx *Ctx, f Factory) (any, error) {
	inst, err := f(ctx)
	if err != nil {
		if _, tagged := err.(*errs.Error); tagged {
			return nil, err
		}
		return nil, errs.Wrap(errs.Container, "container.Make", ctx.Abstract, err)
	}
	return c.applyExtenders(ctx.Abstract, inst), nil
}

func (c *Container) applyExtenders(key string, instance any) any {
	for _, cur := range c.chain() {
		cur.mu.RLock()
		exts := cur.extenders[key]
		cur.mu.RUnlock()
		for _, ext := range exts {
			instance = ext(instance, c)
		}
	}
	return instance
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound reports whether an abstract is registered in this container.
func (c *Container) Bound(abstract string) bool {
	key := c.canonical(abstract)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, hasBinding := c.bindings[key]
	_, hasInstance := c.instances[key]
	return hasBinding || hasInstance
}

// Has reports whether an abstract resolves here or in any parent scope.
func (c *Container) Has(abstract string) bool {
	_, _, found, b := c.lookup(c.canonical(abstract))
	return found || b != nil
}

// Resolved reports whether the abstract holds a cached instance.
func (c *Container) Resolved(abstract string) bool {
	key := c.canonical(abstract)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.instances[key]
	return ok
}

// Forget removes the binding and the cached instance of an abstract.
func (c *Container) Forget(abstract string) {
	key := c.canonical(abstract)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bindings, key)
	delete(c.instances, key)
}

// Flush resets the container, keeping only its self binding.
func (c *Container) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = make(map[string]*binding)
	c.instances = map[string]any{"container": c}
	c.aliases = make(map[string]string)
	c.extenders = make(map[string][]Extender)
	c.tags = make(map[string][]string)
	c.contextual = make(map[string]map[string]Factory)
	c.owned = nil
}

// Bindings returns the sorted abstract keys registered in this container.
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings)+len(c.instances))
	for k := range c.bindings {
		out = append(out, k)
	}
	for k := range c.instances {
		if _, already := c.bindings[k]; !already {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Aliases returns a copy of this container's alias table.
func (c *Container) Aliases() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}

// canonical follows the alias chain through every enclosing scope.
func (c *Container) canonical(abstract string) string {
	for i := 0; i < maxAliasDepth; i++ {
		target, ok := c.aliasOf(abstract)
		if !ok {
			return abstract
		}
		abstract = target
	}
	return abstract
}

func (c *Container) aliasOf(abstract string) (string, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		target, ok := cur.aliases[abstract]
		cur.mu.RUnlock()
		if ok {
			return target, true
		}
	}
	return "", false
}

// chain returns the scope chain ordered root first.
func (c *Container) chain() []*Container {
	var out []*Container
	for cur := c; cur != nil; cur = cur.parent {
		out = append([]*Container{cur}, out...)
	}
	return out
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// Rebinding registers a callback fired whenever an abstract is re-bound.
func (c *Container) Rebinding(abstract string, cb func(any)) {
	key := c.canonical(abstract)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reboundCallbacks[key] = append(c.reboundCallbacks[key], cb)
}

// AfterResolving registers a callback fired after any abstract is built.
func (c *Container) AfterResolving(cb func(abstract string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

func (c *Container) fireRebound(key string, instance any) {
	c.mu.RLock()
	cbs := c.reboundCallbacks[key]
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(instance)
	}
}

func (c *Container) fireAfterResolving(key string, instance any) {
	for _, cur := range c.chain() {
		cur.mu.RLock()
		cbs := cur.afterResolving
		cur.mu.RUnlock()
		for _, cb := range cbs {
			cb(key, instance)
		}
	}
}

// ── Generics helpers ──────────────────────────────────────────────────────────

// Resolve resolves abstract and type-asserts the result.
//
//	db, err := container.Resolve[*sqlx.DB](c, "db")
func Resolve[T any](r Resolver, abstract string) (T, error) {
	var zero T
	instance, err := r.Make(abstract)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, errs.New(errs.Container, "container.Resolve", abstract,
			"resolved to %T, want %s", instance, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](r Resolver, abstract string) T {
	typed, err := Resolve[T](r, abstract)
	if err != nil {
		panic(err)
	}
	return typed
}

// Get resolves the value bound under KeyOf[T]().
func Get[T any](r Resolver) (T, error) {
	return Resolve[T](r, KeyOf[T]())
}

// Provide binds a typed factory under KeyOf[T]().
//
//	container.Provide(c, true, func(ctx *container.Ctx) (*Config, error) { ... })
func Provide[T any](c *Container, singleton bool, factory func(ctx *Ctx) (T, error)) {
	f := func(ctx *Ctx) (any, error) { return factory(ctx) }
	c.bind(KeyOf[T](), f, singleton)
}

// TypeKey returns the package-qualified type name of v, usable as a stable
// abstract key for interfaces and structs.
//
//	key := container.TypeKey((*UserRepository)(nil))  // "example.com/app.UserRepository"
func TypeKey(v any) string {
	return typeKey(reflect.TypeOf(v))
}

// KeyOf returns the abstract key used for T by Provide, Get and autowiring.
func KeyOf[T any]() string {
	return typeKey(reflect.TypeOf((*T)(nil)).Elem())
}

func typeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return fmt.Sprintf("%s.%s", t.PkgPath(), t.Name())
}
