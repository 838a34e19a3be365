package container

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-spiral/framework/errs"
)

// ── Bootloader interface ──────────────────────────────────────────────────────

// Bootloader is a registration unit that wires bindings into the container.
//
// Register runs first for every bootloader; Boot runs after all of them are
// registered, so Boot may resolve anything.
//
//	type MailBootloader struct{ container.BaseBootloader }
//
//	func (b *MailBootloader) Register(c *container.Container) error {
//	    c.Singleton("mailer", func(ctx *container.Ctx) (any, error) {
//	        cfg, err := container.Resolve[*config.Config](ctx, "config")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return mail.NewSMTP(cfg.Mail), nil
//	    })
//	    return nil
//	}
type Bootloader interface {
	// Register binds services. Do not resolve other bindings here.
	Register(c *Container) error

	// Boot is called after all bootloaders are registered.
	Boot(c *Container) error

	// Provides lists the abstracts a deferred bootloader registers.
	Provides() []string

	// IsDeferred makes the bootloader lazy: it is registered the first time
	// one of its Provides() abstracts is resolved.
	IsDeferred() bool
}

// DependsOn is implemented by bootloaders that need others registered first.
type DependsOn interface {
	Depends() []Bootloader
}

// BaseBootloader provides no-op Boot, Provides and IsDeferred.
type BaseBootloader struct{}

func (BaseBootloader) Boot(*Container) error { return nil }
func (BaseBootloader) Provides() []string    { return nil }
func (BaseBootloader) IsDeferred() bool      { return false }

// ── Registry ──────────────────────────────────────────────────────────────────

type deferredState struct {
	once sync.Once
	err  error
}

// Registry registers and boots bootloaders against one container.
type Registry struct {
	mu         sync.Mutex
	c          *Container
	logger     *zap.Logger
	eager      []Bootloader
	registered map[Bootloader]bool
	deferred   map[Bootloader]*deferredState
	pending    map[string]*binding // abstract → deferred placeholder
	booted     bool
}

// NewRegistry creates a registry bound to c.
func NewRegistry(c *Container) *Registry {
	return &Registry{
		c:          c,
		logger:     zap.NewNop(),
		registered: make(map[Bootloader]bool),
		deferred:   make(map[Bootloader]*deferredState),
		pending:    make(map[string]*binding),
	}
}

// SetLogger replaces the registry's logger.
func (r *Registry) SetLogger(logger *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a bootloader. Its dependencies are registered first and a
// bootloader registered twice is ignored. Eager bootloaders registered after
// Boot are booted immediately.
func (r *Registry) Register(b Bootloader) error {
	r.mu.Lock()
	if r.registered[b] {
		r.mu.Unlock()
		return nil
	}
	r.registered[b] = true
	logger := r.logger
	r.mu.Unlock()

	if d, ok := b.(DependsOn); ok {
		for _, dep := range d.Depends() {
			if err := r.Register(dep); err != nil {
				return err
			}
		}
	}

	name := bootloaderName(b)
	if b.IsDeferred() {
		r.mu.Lock()
		r.deferred[b] = &deferredState{}
		r.mu.Unlock()
		for _, abstract := range b.Provides() {
			r.bindDeferred(b, abstract)
		}
		logger.Debug("bootloader deferred", zap.String("bootloader", name), zap.Strings("provides", b.Provides()))
		return nil
	}

	if err := b.Register(r.c); err != nil {
		return errs.Wrap(errs.Bootloader, "bootloader.Register", name, err)
	}

	r.mu.Lock()
	r.eager = append(r.eager, b)
	booted := r.booted
	r.mu.Unlock()
	logger.Debug("bootloader registered", zap.String("bootloader", name))

	if booted {
		if err := b.Boot(r.c); err != nil {
			return errs.Wrap(errs.Bootloader, "bootloader.Boot", name, err)
		}
	}
	return nil
}

// bindDeferred binds a placeholder that loads the bootloader on first use and
// then resolves the real binding it registered.
func (r *Registry) bindDeferred(b Bootloader, abstract string) {
	r.c.Bind(abstract, func(ctx *Ctx) (any, error) {
		r.mu.Lock()
		state := r.deferred[b]
		r.mu.Unlock()

		state.once.Do(func() { state.err = r.load(b) })
		if state.err != nil {
			return nil, state.err
		}
		if !r.replaced(abstract) {
			return nil, errs.New(errs.Bootloader, "bootloader.Deferred", abstract,
				"%s did not register %q", bootloaderName(b), abstract)
		}
		return ctx.Container.Make(abstract)
	})
	r.placeholders(abstract)
}

func (r *Registry) load(b Bootloader) error {
	name := bootloaderName(b)
	if err := b.Register(r.c); err != nil {
		return errs.Wrap(errs.Bootloader, "bootloader.Register", name, err)
	}
	r.mu.Lock()
	booted := r.booted
	logger := r.logger
	if !booted {
		// booted together with the eager ones
		r.eager = append(r.eager, b)
	}
	r.mu.Unlock()
	if booted {
		if err := b.Boot(r.c); err != nil {
			return errs.Wrap(errs.Bootloader, "bootloader.Boot", name, err)
		}
	}
	logger.Debug("deferred bootloader loaded", zap.String("bootloader", name))
	return nil
}

// placeholders remembers the placeholder binding so replaced can tell
// whether the deferred bootloader rebound the abstract.
func (r *Registry) placeholders(abstract string) {
	key := r.c.canonical(abstract)
	r.c.mu.RLock()
	b := r.c.bindings[key]
	r.c.mu.RUnlock()
	r.mu.Lock()
	r.pending[key] = b
	r.mu.Unlock()
}

func (r *Registry) replaced(abstract string) bool {
	key := r.c.canonical(abstract)
	r.c.mu.RLock()
	current, bound := r.c.bindings[key]
	_, resolved := r.c.instances[key]
	r.c.mu.RUnlock()
	r.mu.Lock()
	placeholder := r.pending[key]
	r.mu.Unlock()
	return resolved || (bound && current != placeholder)
}

// Boot calls Boot on every eager bootloader in registration order. Calling it
// again is a no-op.
func (r *Registry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	eager := append([]Bootloader(nil), r.eager...)
	logger := r.logger
	r.mu.Unlock()

	for _, b := range eager {
		if err := b.Boot(r.c); err != nil {
			return errs.Wrap(errs.Bootloader, "bootloader.Boot", bootloaderName(b), err)
		}
	}
	logger.Debug("bootloaders booted", zap.Int("count", len(eager)))
	return nil
}

// Booted reports whether Boot has been called.
func (r *Registry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Bootloaders returns the eager bootloaders and the deferred ones loaded
// so far.
func (r *Registry) Bootloaders() []Bootloader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Bootloader(nil), r.eager...)
}

func bootloaderName(b Bootloader) string {
	return fmt.Sprintf("%T", b)
}
