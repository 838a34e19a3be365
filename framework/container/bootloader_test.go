package container_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/errs"
)

// ── stub bootloaders ──────────────────────────────────────────────────────────

type eagerBootloader struct {
	container.BaseBootloader
	registerCalls int
	bootCalled    bool
}

func (b *eagerBootloader) Register(c *container.Container) error {
	b.registerCalls++
	c.Singleton("eager-svc", func(*container.Ctx) (any, error) { return "eager", nil })
	return nil
}

func (b *eagerBootloader) Boot(*container.Container) error {
	b.bootCalled = true
	return nil
}

// deferredBootloader is lazy: only registered when "deferred-svc" is first resolved.
type deferredBootloader struct {
	container.BaseBootloader
	mu            sync.Mutex
	registerCalls int
	bootCalled    bool
}

func (b *deferredBootloader) Register(c *container.Container) error {
	b.mu.Lock()
	b.registerCalls++
	b.mu.Unlock()
	c.Singleton("deferred-svc", func(*container.Ctx) (any, error) { return "deferred-value", nil })
	return nil
}

func (b *deferredBootloader) Boot(*container.Container) error {
	b.bootCalled = true
	return nil
}

func (b *deferredBootloader) IsDeferred() bool   { return true }
func (b *deferredBootloader) Provides() []string { return []string{"deferred-svc"} }

// lyingBootloader claims to provide an abstract it never binds.
type lyingBootloader struct{ container.BaseBootloader }

func (b *lyingBootloader) Register(*container.Container) error { return nil }
func (b *lyingBootloader) IsDeferred() bool                    { return true }
func (b *lyingBootloader) Provides() []string                  { return []string{"ghost"} }

// multiBootloader registers multiple abstracts.
type multiBootloader struct {
	container.BaseBootloader
}

func (b *multiBootloader) Register(c *container.Container) error {
	c.Singleton("alpha", func(*container.Ctx) (any, error) { return "α", nil })
	c.Singleton("beta", func(*container.Ctx) (any, error) { return "β", nil })
	return nil
}

type failingBootloader struct{ container.BaseBootloader }

func (b *failingBootloader) Register(*container.Container) error {
	return errors.New("redis unreachable")
}

// dependentBootloader needs multiBootloader registered first.
type dependentBootloader struct {
	container.BaseBootloader
	dep      *multiBootloader
	sawAlpha bool
}

func (b *dependentBootloader) Depends() []container.Bootloader {
	return []container.Bootloader{b.dep}
}

func (b *dependentBootloader) Register(c *container.Container) error {
	b.sawAlpha = c.Bound("alpha")
	return nil
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_EagerBootloader_RegisterCalled(t *testing.T) {
	reg := container.NewRegistry(container.New())

	b := &eagerBootloader{}
	if err := reg.Register(b); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if b.registerCalls != 1 {
		t.Errorf("Register() should run immediately for eager bootloaders, ran %d times", b.registerCalls)
	}
}

func TestRegistry_EagerBootloader_BootCalledAfterBoot(t *testing.T) {
	reg := container.NewRegistry(container.New())

	b := &eagerBootloader{}
	_ = reg.Register(b)

	if b.bootCalled {
		t.Error("Boot() should NOT be called before registry.Boot()")
	}

	if err := reg.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if !b.bootCalled {
		t.Error("Boot() should be called after registry.Boot()")
	}
}

func TestRegistry_EagerBootloader_ServiceResolvable(t *testing.T) {
	c := container.New()
	reg := container.NewRegistry(c)
	_ = reg.Register(&eagerBootloader{})
	_ = reg.Boot()

	got := container.MustResolve[string](c, "eager-svc")
	if got != "eager" {
		t.Errorf("eager-svc: got %q, want 'eager'", got)
	}
}

func TestRegistry_Boot_Idempotent(t *testing.T) {
	reg := container.NewRegistry(container.New())
	_ = reg.Register(&eagerBootloader{})

	_ = reg.Boot()
	if err := reg.Boot(); err != nil {
		t.Errorf("second Boot() should be a no-op, got %v", err)
	}

	if !reg.Booted() {
		t.Error("Booted() should be true after Boot()")
	}
}

func TestRegistry_Booted_FalseBeforeBoot(t *testing.T) {
	reg := container.NewRegistry(container.New())
	if reg.Booted() {
		t.Error("Booted() should be false before Boot()")
	}
}

func TestRegistry_DuplicateRegister_Ignored(t *testing.T) {
	reg := container.NewRegistry(container.New())

	b := &eagerBootloader{}
	_ = reg.Register(b)
	_ = reg.Register(b)

	if b.registerCalls != 1 {
		t.Errorf("bootloader should be registered once, got %d", b.registerCalls)
	}
}

func TestRegistry_RegisterError_IsTagged(t *testing.T) {
	reg := container.NewRegistry(container.New())

	err := reg.Register(&failingBootloader{})
	if !errs.Is(err, errs.Bootloader) {
		t.Fatalf("expected bootloader error, got %v", err)
	}
}

func TestRegistry_DependsOn_RegistersDependencyFirst(t *testing.T) {
	reg := container.NewRegistry(container.New())
	b := &dependentBootloader{dep: &multiBootloader{}}

	if err := reg.Register(b); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !b.sawAlpha {
		t.Error("dependency should be registered before the dependent bootloader")
	}
	if got := len(reg.Bootloaders()); got != 2 {
		t.Errorf("Bootloaders(): got %d want 2", got)
	}
}

// ── Deferred bootloaders ──────────────────────────────────────────────────────

func TestRegistry_DeferredBootloader_NotRegisteredEagerly(t *testing.T) {
	reg := container.NewRegistry(container.New())

	b := &deferredBootloader{}
	_ = reg.Register(b)
	_ = reg.Boot()

	if b.registerCalls != 0 {
		t.Error("deferred bootloader Register() should not be called until Make()")
	}
}

func TestRegistry_DeferredBootloader_RegisteredOnFirstMake(t *testing.T) {
	c := container.New()
	reg := container.NewRegistry(c)

	b := &deferredBootloader{}
	_ = reg.Register(b)
	_ = reg.Boot()

	got := container.MustResolve[string](c, "deferred-svc")
	if got != "deferred-value" {
		t.Errorf("deferred-svc: got %q, want 'deferred-value'", got)
	}
	if !b.bootCalled {
		t.Error("deferred bootloader loaded after Boot() should be booted immediately")
	}
}

func TestRegistry_DeferredBootloader_LoadedBeforeBoot_BootedWithOthers(t *testing.T) {
	c := container.New()
	reg := container.NewRegistry(c)

	b := &deferredBootloader{}
	_ = reg.Register(b)

	if _, err := c.Make("deferred-svc"); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if b.bootCalled {
		t.Error("Boot() should wait for registry.Boot()")
	}
	_ = reg.Boot()
	if !b.bootCalled {
		t.Error("loaded deferred bootloader should be booted by registry.Boot()")
	}
}

func TestRegistry_DeferredBootloader_RegisteredOnceUnderConcurrency(t *testing.T) {
	c := container.New()
	reg := container.NewRegistry(c)

	b := &deferredBootloader{}
	_ = reg.Register(b)
	_ = reg.Boot()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Make("deferred-svc"); err != nil {
				t.Errorf("Make: %v", err)
			}
		}()
	}
	wg.Wait()

	if b.registerCalls != 1 {
		t.Errorf("Register() calls: got %d want 1", b.registerCalls)
	}
}

func TestRegistry_DeferredBootloader_MissingBinding(t *testing.T) {
	c := container.New()
	reg := container.NewRegistry(c)
	_ = reg.Register(&lyingBootloader{})

	_, err := c.Make("ghost")
	if !errs.Is(err, errs.Bootloader) {
		t.Fatalf("expected bootloader error, got %v", err)
	}
}

// ── Multiple bootloaders ──────────────────────────────────────────────────────

func TestRegistry_MultipleBootloaders_AllServicesResolvable(t *testing.T) {
	c := container.New()
	reg := container.NewRegistry(c)
	_ = reg.Register(&multiBootloader{})
	_ = reg.Register(&eagerBootloader{})
	_ = reg.Boot()

	for abstract, want := range map[string]string{"alpha": "α", "beta": "β", "eager-svc": "eager"} {
		if got := container.MustResolve[string](c, abstract); got != want {
			t.Errorf("%s: got %q, want %q", abstract, got, want)
		}
	}
}

func TestRegistry_Bootloaders_ReturnsEagerOnes(t *testing.T) {
	reg := container.NewRegistry(container.New())
	_ = reg.Register(&eagerBootloader{})
	_ = reg.Register(&deferredBootloader{})

	if len(reg.Bootloaders()) != 1 {
		t.Errorf("Bootloaders(): got %d, want 1 (eager only)", len(reg.Bootloaders()))
	}
}

func TestBaseBootloader_Defaults(t *testing.T) {
	var b container.BaseBootloader

	if err := b.Boot(container.New()); err != nil {
		t.Errorf("BaseBootloader.Boot() should be a no-op, got %v", err)
	}
	if b.IsDeferred() {
		t.Error("BaseBootloader.IsDeferred() should be false")
	}
	if len(b.Provides()) != 0 {
		t.Error("BaseBootloader.Provides() should return empty slice")
	}
}

func TestRegistry_RegisterAfterBoot_BootsImmediately(t *testing.T) {
	reg := container.NewRegistry(container.New())
	_ = reg.Boot()

	b := &eagerBootloader{}
	_ = reg.Register(b)

	if !b.bootCalled {
		t.Error("bootloader registered after Boot() should be booted immediately")
	}
}
