// Package container provides the IoC container, resolution scopes and the
// bootloader registry.
//
// # Overview
//
// The container manages the construction and lifecycle of application
// dependencies. It supports transient bindings, singletons, pre-built
// instances, aliases, tags, contextual bindings, decorators and child
// scopes. Go has no constructor reflection for arbitrary types, so bindings
// are explicit factories; BindConstructor adds opt-in wiring of plain Go
// constructor functions by parameter type.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register bootloaders: registry.Register(&MyBootloader{})
//  3. Boot: registry.Boot() (safe to resolve everything after this)
//  4. Serve requests, each inside its own scope
//  5. Close: c.Close() (finalizers, then io.Closer singletons)
//
// # Bindings
//
//	// Transient: new instance every Make()
//	c.Bind("mailer", func(ctx *container.Ctx) (any, error) { return &Mailer{}, nil })
//
//	// Singleton: built once, reused
//	c.Singleton("cache", func(ctx *container.Ctx) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](ctx, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cache.NewStore(cfg.Cache, "app")
//	})
//
//	// Pre-built value
//	c.Instance("config", cfg)
//
//	// Alias
//	c.Alias("cache", "cache.store")
//
// # Resolving
//
//	raw, err := c.Make("cache")
//	store, err := container.Resolve[cache.Store](c, "cache")
//
// Inside a factory, resolve nested dependencies through the *Ctx argument.
// The Ctx chain carries the resolution path, which is how circular
// dependencies (a -> b -> a) are reported instead of overflowing the stack.
//
// # Contextual Binding
//
//	c.When("photos").
//	    Needs("filesystem").
//	    Give(func(ctx *container.Ctx) (any, error) { return &S3Filesystem{}, nil })
//
// # Scopes
//
// A scope is a child container. It sees every parent binding, while its own
// bindings stay local. The active scope travels on context.Context:
//
//	err := app.RunScope(r.Context(), "http", func(s *container.Container) error {
//	    s.Instance("request", r)
//	    return nil
//	}, func(ctx context.Context, s *container.Container) error {
//	    return handle(ctx)
//	})
//
//	scope, ok := container.FromContext(ctx)
//
// # Bootloaders
//
//	type AppBootloader struct{ container.BaseBootloader }
//
//	func (b *AppBootloader) Register(c *container.Container) error {
//	    c.Singleton("mailer", newMailer)
//	    return nil
//	}
//
//	registry := container.NewRegistry(c)
//	_ = registry.Register(&AppBootloader{})
//	_ = registry.Boot()
//
// # Deferred Bootloaders
//
//	func (b *DatabaseBootloader) IsDeferred() bool   { return true }
//	func (b *DatabaseBootloader) Provides() []string { return []string{"db"} }
//
// Register runs the first time "db" is resolved.
package container
