package container_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/errs"
)

type counter struct{ n int }

func value(v any) container.Factory {
	return func(*container.Ctx) (any, error) { return v, nil }
}

// ── Bind / Singleton / Instance ───────────────────────────────────────────────

func TestBind_TransientBuildsEveryTime(t *testing.T) {
	c := container.New()
	c.Bind("counter", func(*container.Ctx) (any, error) { return &counter{}, nil })

	a := container.MustResolve[*counter](c, "counter")
	b := container.MustResolve[*counter](c, "counter")
	assert.NotSame(t, a, b)
	assert.False(t, c.Resolved("counter"))
}

func TestSingleton_ResolvedOnce(t *testing.T) {
	c := container.New()
	calls := 0
	c.Singleton("counter", func(*container.Ctx) (any, error) {
		calls++
		return &counter{}, nil
	})

	a := container.MustResolve[*counter](c, "counter")
	b := container.MustResolve[*counter](c, "counter")
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
	assert.True(t, c.Resolved("counter"))
}

func TestSingleton_ConcurrentFirstResolutionBuildsOnce(t *testing.T) {
	c := container.New()
	var calls atomic.Int32
	c.Singleton("counter", func(*container.Ctx) (any, error) {
		calls.Add(1)
		return &counter{}, nil
	})

	var wg sync.WaitGroup
	results := make([]*counter, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = container.MustResolve[*counter](c, "counter")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestSingleton_FactoryErrorIsNotCached(t *testing.T) {
	c := container.New()
	fail := true
	c.Singleton("flaky", func(*container.Ctx) (any, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return "ok", nil
	})

	_, err := c.Make("flaky")
	require.Error(t, err)
	assert.Equal(t, errs.Container, errs.KindOf(err))

	fail = false
	got, err := c.Make("flaky")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestInstance_ReplacesBinding(t *testing.T) {
	c := container.New()
	c.Bind("name", value("factory"))
	c.Instance("name", "instance")

	assert.Equal(t, "instance", c.MustMake("name"))
}

func TestMake_SelfBinding(t *testing.T) {
	c := container.New()
	assert.Same(t, c, container.MustResolve[*container.Container](c, "container"))
}

func TestMake_UnknownAbstract(t *testing.T) {
	c := container.New()
	_, err := c.Make("missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
	assert.Contains(t, err.Error(), "missing")
}

func TestMustMake_Panics(t *testing.T) {
	c := container.New()
	assert.Panics(t, func() { c.MustMake("missing") })
}

// ── Aliases ───────────────────────────────────────────────────────────────────

func TestAlias_ResolvesTarget(t *testing.T) {
	c := container.New()
	c.Singleton("cache.store", value("redis"))
	require.NoError(t, c.Alias("cache.store", "cache"))
	require.NoError(t, c.Alias("cache", "store"))

	assert.Equal(t, "redis", c.MustMake("cache"))
	assert.Equal(t, "redis", c.MustMake("store"))
	assert.True(t, c.Bound("store"))
}

func TestAlias_RejectsSelfAndCycles(t *testing.T) {
	c := container.New()
	assert.True(t, errs.Is(c.Alias("a", "a"), errs.Container))

	require.NoError(t, c.Alias("a", "b"))
	assert.True(t, errs.Is(c.Alias("b", "a"), errs.Container))
}

// ── Circular dependencies ─────────────────────────────────────────────────────

func TestMake_DetectsCircularDependency(t *testing.T) {
	c := container.New()
	c.Bind("a", func(ctx *container.Ctx) (any, error) { return ctx.Make("b") })
	c.Bind("b", func(ctx *container.Ctx) (any, error) { return ctx.Make("c") })
	c.Bind("c", func(ctx *container.Ctx) (any, error) { return ctx.Make("a") })

	_, err := c.Make("a")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Circular))
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestMake_SingletonCycleDoesNotDeadlock(t *testing.T) {
	c := container.New()
	c.Singleton("a", func(ctx *container.Ctx) (any, error) { return ctx.Make("a") })

	_, err := c.Make("a")
	assert.True(t, errs.Is(err, errs.Circular))
}

func TestMake_DepthLimit(t *testing.T) {
	c := container.New()
	for i := 0; i <= container.MaxDepth+1; i++ {
		next := fmt.Sprintf("link.%d", i+1)
		c.Bind(fmt.Sprintf("link.%d", i), func(ctx *container.Ctx) (any, error) { return ctx.Make(next) })
	}

	_, err := c.Make("link.0")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Circular))
	assert.Contains(t, err.Error(), fmt.Sprintf("exceeds %d", container.MaxDepth))
}

func TestMake_ClosedScope(t *testing.T) {
	c := container.New()
	c.Bind("x", value(1))
	scope := c.Scope("job")
	require.NoError(t, scope.Close())

	_, err := scope.Make("x")
	assert.True(t, errs.Is(err, errs.Scope), "got %v", err)

	v, err := c.Make("x")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestCtx_DescribesResolution(t *testing.T) {
	c := container.New()
	var seen *container.Ctx
	c.Singleton("db", func(ctx *container.Ctx) (any, error) {
		seen = ctx
		return "conn", nil
	})
	c.Bind("repo", func(ctx *container.Ctx) (any, error) { return ctx.Make("database") })
	require.NoError(t, c.Alias("db", "database"))

	_, err := c.Make("repo")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "database", seen.Alias)
	assert.Equal(t, "db", seen.Abstract)
	assert.True(t, seen.Singleton)
	assert.Equal(t, 1, seen.Depth)
	assert.Equal(t, []string{"repo", "db"}, seen.Path())
}

// ── Contextual binding ────────────────────────────────────────────────────────

func TestContextualBinding(t *testing.T) {
	c := container.New()
	c.Bind("filesystem", value("local"))
	c.Bind("photos", func(ctx *container.Ctx) (any, error) { return ctx.Make("filesystem") })
	c.Bind("videos", func(ctx *container.Ctx) (any, error) { return ctx.Make("filesystem") })
	c.When("photos").Needs("filesystem").GiveValue("s3")

	assert.Equal(t, "s3", c.MustMake("photos"))
	assert.Equal(t, "local", c.MustMake("videos"))
	assert.Equal(t, "local", c.MustMake("filesystem"))
}

// ── Extend / callbacks ────────────────────────────────────────────────────────

func TestExtend_DecoratesNewAndCachedInstances(t *testing.T) {
	c := container.New()
	c.Singleton("greeting", value("hello"))
	assert.Equal(t, "hello", c.MustMake("greeting"))

	c.Extend("greeting", func(instance any, _ *container.Container) any {
		return instance.(string) + " world"
	})
	assert.Equal(t, "hello world", c.MustMake("greeting"))

	c.Bind("name", value("spiral"))
	c.Extend("name", func(instance any, _ *container.Container) any {
		return "go-" + instance.(string)
	})
	assert.Equal(t, "go-spiral", c.MustMake("name"))
}

func TestRebinding_FiresForResolvedAbstracts(t *testing.T) {
	c := container.New()
	c.Singleton("driver", value("memory"))
	_ = c.MustMake("driver")

	var got any
	c.Rebinding("driver", func(instance any) { got = instance })
	c.Singleton("driver", value("redis"))

	assert.Equal(t, "redis", got)
}

func TestAfterResolving_SeesEveryBuild(t *testing.T) {
	c := container.New()
	c.Bind("x", value(1))

	var seen []string
	c.AfterResolving(func(abstract string, _ any) { seen = append(seen, abstract) })
	_ = c.MustMake("x")
	_ = c.MustMake("x")

	assert.Equal(t, []string{"x", "x"}, seen)
}

func TestAfterResolving_MayResolveDependentsOfSingleton(t *testing.T) {
	c := container.New()
	c.Singleton("config", value(&counter{n: 1}))
	c.Singleton("logger", func(ctx *container.Ctx) (any, error) {
		cfg, err := container.Resolve[*counter](ctx, "config")
		if err != nil {
			return nil, err
		}
		return &counter{n: cfg.n + 1}, nil
	})

	var logger *counter
	c.AfterResolving(func(abstract string, _ any) {
		if abstract == "config" {
			logger = container.MustResolve[*counter](c, "logger")
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Make("config")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Make did not return")
	}
	require.NotNil(t, logger)
	assert.Equal(t, 2, logger.n)
}

func TestAfterResolving_FiresOncePerSingleton(t *testing.T) {
	c := container.New()
	c.Singleton("s", value(&counter{}))

	var seen int
	c.AfterResolving(func(string, any) { seen++ })
	_ = c.MustMake("s")
	_ = c.MustMake("s")

	assert.Equal(t, 1, seen)
}

// ── Tags ──────────────────────────────────────────────────────────────────────

func TestTagged(t *testing.T) {
	c := container.New()
	c.Bind("report.cpu", value("cpu"))
	c.Bind("report.memory", value("memory"))
	c.Tag([]string{"report.cpu", "report.memory"}, "reports")

	reports, err := c.Tagged("reports")
	require.NoError(t, err)
	assert.Equal(t, []any{"cpu", "memory"}, reports)
	assert.Equal(t, []string{"report.cpu", "report.memory"}, c.Scope("job").TaggedAbstracts("reports"))

	c.Tag([]string{"report.disk"}, "reports")
	_, err = c.Tagged("reports")
	assert.True(t, errs.Is(err, errs.NotFound))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func TestForgetAndFlush(t *testing.T) {
	c := container.New()
	c.Singleton("a", value("a"))
	c.Bind("b", value("b"))
	_ = c.MustMake("a")

	c.Forget("a")
	assert.False(t, c.Bound("a"))
	assert.True(t, c.Bound("b"))

	c.Flush()
	assert.Equal(t, []string{"container"}, c.Bindings())
}

func TestBindings_Sorted(t *testing.T) {
	c := container.New()
	c.Bind("zeta", value(1))
	c.Instance("alpha", 2)

	assert.Equal(t, []string{"alpha", "container", "zeta"}, c.Bindings())
}

// ── Generics ──────────────────────────────────────────────────────────────────

type settings struct{ Name string }

func TestResolve_TypeMismatch(t *testing.T) {
	c := container.New()
	c.Instance("n", 42)

	_, err := container.Resolve[string](c, "n")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Container))
}

func TestProvideAndGet(t *testing.T) {
	c := container.New()
	container.Provide(c, true, func(*container.Ctx) (*settings, error) {
		return &settings{Name: "app"}, nil
	})

	s, err := container.Get[*settings](c)
	require.NoError(t, err)
	assert.Equal(t, "app", s.Name)
	assert.True(t, c.Bound(container.TypeKey(&settings{})))
}

func TestTypeKey(t *testing.T) {
	assert.Equal(t, "github.com/km-arc/go-spiral/framework/container_test.settings", container.TypeKey(&settings{}))
	assert.Equal(t, container.TypeKey(settings{}), container.KeyOf[*settings]())
	assert.Equal(t, "string", container.KeyOf[string]())
	assert.Equal(t, "[]int", container.KeyOf[[]int]())
}
