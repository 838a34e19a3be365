package bootloaders_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/km-arc/go-spiral/framework/bootloaders"
	"github.com/km-arc/go-spiral/framework/cache"
	"github.com/km-arc/go-spiral/framework/config"
	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
	"github.com/km-arc/go-spiral/framework/http/validation"
	"github.com/km-arc/go-spiral/framework/routing"
)

func testConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Name: "test", Env: "testing", Port: "0"},
		Log:   config.LogConfig{Level: "error", Format: "json"},
		Cache: config.CacheConfig{Driver: "memory"},
		DB:    config.DBConfig{Driver: "postgres", Host: "127.0.0.1", Port: "1", Database: "none"},
	}
}

type greeter struct{}

func (greeter) Actions() core.Actions {
	return core.Actions{
		"hello": func(_ context.Context, p core.Params) (any, error) {
			return "hello " + p.String("name"), nil
		},
	}
}

func boot(t *testing.T, cb *bootloaders.CoreBootloader) (*container.Container, *container.Registry) {
	t.Helper()
	c := container.New()
	reg := container.NewRegistry(c)
	if cb == nil {
		cb = &bootloaders.CoreBootloader{}
	}
	list := []container.Bootloader{
		&bootloaders.ConfigBootloader{Config: testConfig()},
		&bootloaders.LoggingBootloader{},
		&bootloaders.TelemetryBootloader{},
		&bootloaders.MetricsBootloader{Registry: prometheus.NewRegistry()},
		&bootloaders.CacheBootloader{},
		&bootloaders.DatabaseBootloader{},
		cb,
		&bootloaders.HTTPBootloader{},
		&bootloaders.RoutingBootloader{MetricsPath: "/metrics"},
	}
	for _, b := range list {
		require.NoError(t, reg.Register(b))
	}
	c.Singleton("greeter", func(*container.Ctx) (any, error) { return greeter{}, nil })
	require.NoError(t, reg.Boot())
	t.Cleanup(func() { _ = c.Close() })
	return c, reg
}

func TestFramework_ResolvesEverything(t *testing.T) {
	c, _ := boot(t, nil)

	cfg, err := container.Get[*config.Config](c)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.App.Name)

	_, err = container.Get[*zap.Logger](c)
	assert.NoError(t, err)

	repo, err := container.Resolve[*config.Repository](c, "config.repository")
	require.NoError(t, err)
	assert.NotNil(t, repo)

	_, err = container.Resolve[trace.Tracer](c, "tracer")
	assert.NoError(t, err)

	store, err := container.Resolve[cache.Store](c, "cache")
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, store)

	_, err = container.Resolve[*routing.Router](c, "router")
	assert.NoError(t, err)
}

func TestFramework_List(t *testing.T) {
	list := bootloaders.Framework(".env.test")
	require.Len(t, list, 9)
	assert.Equal(t, []string{".env.test"}, list[0].(*bootloaders.ConfigBootloader).EnvFiles)
}

func TestDatabaseBootloader_IsDeferred(t *testing.T) {
	c, reg := boot(t, nil)

	for _, b := range reg.Bootloaders() {
		_, isDB := b.(*bootloaders.DatabaseBootloader)
		assert.False(t, isDB, "database bootloader loaded before first use")
	}

	db, err := container.Resolve[*sqlx.DB](c, "db")
	require.NoError(t, err)
	assert.Equal(t, "postgres", db.DriverName())

	again, err := container.Resolve[*sqlx.DB](c, "db")
	require.NoError(t, err)
	assert.Same(t, db, again)
}

func TestCoreBootloader_PipelineRunsActions(t *testing.T) {
	c, _ := boot(t, &bootloaders.CoreBootloader{
		Rules: map[string]validation.Rules{"greeter.hello": {"name": "required|alpha"}},
	})
	pipeline, err := container.Resolve[*core.Pipeline](c, "core")
	require.NoError(t, err)
	assert.Len(t, pipeline.Interceptors(), 5)

	out, err := pipeline.CallAction(context.Background(), "greeter", "hello", core.Params{"name": "gopher"})
	require.NoError(t, err)
	assert.Equal(t, "hello gopher", out)

	_, err = pipeline.CallAction(context.Background(), "greeter", "hello", core.Params{"name": "42"})
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestCoreBootloader_TaggedInterceptors(t *testing.T) {
	c := container.New()
	calls := 0
	c.Instance("audit", core.InterceptorFunc(func(ctx context.Context, controller, action string, p core.Params, next core.Core) (any, error) {
		calls++
		return next.CallAction(ctx, controller, action, p)
	}))
	c.Tag([]string{"audit"}, bootloaders.InterceptorTag)

	reg := container.NewRegistry(c)
	for _, b := range []container.Bootloader{
		&bootloaders.ConfigBootloader{Config: testConfig()},
		&bootloaders.LoggingBootloader{},
		&bootloaders.TelemetryBootloader{},
		&bootloaders.MetricsBootloader{Registry: prometheus.NewRegistry()},
		&bootloaders.CoreBootloader{},
	} {
		require.NoError(t, reg.Register(b))
	}
	c.Singleton("greeter", func(*container.Ctx) (any, error) { return greeter{}, nil })

	pipeline, err := container.Resolve[*core.Pipeline](c, "core")
	require.NoError(t, err)
	_, err = pipeline.CallAction(context.Background(), "greeter", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCoreBootloader_RejectsTaggedNonInterceptor(t *testing.T) {
	c := container.New()
	c.Instance("not-an-interceptor", "audit")
	c.Tag([]string{"not-an-interceptor"}, bootloaders.InterceptorTag)

	reg := container.NewRegistry(c)
	for _, b := range []container.Bootloader{
		&bootloaders.ConfigBootloader{Config: testConfig()},
		&bootloaders.LoggingBootloader{},
		&bootloaders.TelemetryBootloader{},
		&bootloaders.MetricsBootloader{Registry: prometheus.NewRegistry()},
		&bootloaders.CoreBootloader{},
	} {
		require.NoError(t, reg.Register(b))
	}

	_, err := c.Make("core")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Interceptor), "got %v", err)
	assert.Contains(t, err.Error(), "not-an-interceptor")
}

func TestRoutingBootloader_ServesActionsAndMetrics(t *testing.T) {
	c, _ := boot(t, nil)
	router, err := container.Resolve[*routing.Router](c, "router")
	require.NoError(t, err)
	router.Action(http.MethodGet, "/hello/{name}", "greeter", "hello")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/hello/world", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":"hello world"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "spiral_action_calls_total"))
}
