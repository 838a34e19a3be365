// Package bootloaders wires the framework components into the container.
//
// Each bootloader binds lazily built singletons; nothing is constructed until
// first resolved. Bound abstracts:
//
//	"config"            *config.Config         ConfigBootloader
//	"config.repository" *config.Repository     ConfigBootloader
//	"logger"            *zap.Logger            LoggingBootloader
//	"tracer.provider"   *telemetry.Provider    TelemetryBootloader
//	"tracer"            trace.Tracer           TelemetryBootloader
//	"metrics.registry"  *prometheus.Registry   MetricsBootloader
//	"metrics"           *metrics.Collectors    MetricsBootloader
//	"cache"             cache.Store            CacheBootloader
//	"db"                *sqlx.DB               DatabaseBootloader (deferred)
//	"core.actions"      *core.ActionCore       CoreBootloader
//	"core"              *core.Pipeline         CoreBootloader
//	"http.dispatcher"   *gohttp.Dispatcher     HTTPBootloader
//	"router"            *routing.Router        RoutingBootloader
package bootloaders

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/km-arc/go-spiral/framework/cache"
	"github.com/km-arc/go-spiral/framework/config"
	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/database"
	"github.com/km-arc/go-spiral/framework/errs"
	gohttp "github.com/km-arc/go-spiral/framework/http"
	"github.com/km-arc/go-spiral/framework/http/validation"
	"github.com/km-arc/go-spiral/framework/interceptors"
	"github.com/km-arc/go-spiral/framework/logging"
	"github.com/km-arc/go-spiral/framework/metrics"
	"github.com/km-arc/go-spiral/framework/routing"
	"github.com/km-arc/go-spiral/framework/telemetry"
)

// InterceptorTag collects extra interceptors appended innermost to "core":
//
//	c.Instance("audit", auditInterceptor)
//	c.Tag([]string{"audit"}, bootloaders.InterceptorTag)
const InterceptorTag = "core.interceptors"

// ── Config ────────────────────────────────────────────────────────────────────

// ConfigBootloader loads configuration from .env files and the environment.
// A preloaded Config skips loading.
type ConfigBootloader struct {
	container.BaseBootloader
	EnvFiles []string
	Config   *config.Config
}

func (b *ConfigBootloader) Register(c *container.Container) error {
	envFiles, preloaded := b.EnvFiles, b.Config
	c.Singleton("config", func(*container.Ctx) (any, error) {
		if preloaded != nil {
			return preloaded, nil
		}
		return config.Load(envFiles...)
	})
	c.Singleton("config.repository", func(ctx *container.Ctx) (any, error) {
		cfg, err := container.Resolve[*config.Config](ctx, "config")
		if err != nil {
			return nil, err
		}
		return cfg.Repository(), nil
	})
	return c.Alias("config", container.KeyOf[*config.Config]())
}

// ── Logging ───────────────────────────────────────────────────────────────────

// LoggingBootloader builds the application logger from the log section.
type LoggingBootloader struct {
	container.BaseBootloader
}

func (b *LoggingBootloader) Register(c *container.Container) error {
	c.Singleton("logger", func(ctx *container.Ctx) (any, error) {
		cfg, err := container.Resolve[*config.Config](ctx, "config")
		if err != nil {
			return nil, err
		}
		logger, err := logging.New(cfg.Log, cfg.App.Env)
		if err != nil {
			return nil, err
		}
		ctx.Container.OnClose(func() error {
			_ = logger.Sync() // fails on non-file sinks such as a terminal
			return nil
		})
		return logger, nil
	})
	return c.Alias("logger", container.KeyOf[*zap.Logger]())
}

// ── Telemetry ─────────────────────────────────────────────────────────────────

// TelemetryBootloader installs the tracer provider and shuts it down when the
// container closes.
type TelemetryBootloader struct {
	container.BaseBootloader
	Options []telemetry.Option
}

func (b *TelemetryBootloader) Register(c *container.Container) error {
	opts := b.Options
	c.Singleton("tracer.provider", func(ctx *container.Ctx) (any, error) {
		cfg, err := container.Resolve[*config.Config](ctx, "config")
		if err != nil {
			return nil, err
		}
		p, err := telemetry.NewTracerProvider(cfg.Telemetry, cfg.App.Env, opts...)
		if err != nil {
			return nil, err
		}
		ctx.Container.OnClose(func() error { return p.Shutdown(context.Background()) })
		return p, nil
	})
	c.Singleton("tracer", func(ctx *container.Ctx) (any, error) {
		p, err := container.Resolve[*telemetry.Provider](ctx, "tracer.provider")
		if err != nil {
			return nil, err
		}
		return p.Tracer(), nil
	})
	return nil
}

// ── Metrics ───────────────────────────────────────────────────────────────────

// MetricsBootloader owns the Prometheus registry. Without a Registry a new
// one is created with the Go and process collectors.
type MetricsBootloader struct {
	container.BaseBootloader
	Registry *prometheus.Registry
}

func (b *MetricsBootloader) Register(c *container.Container) error {
	reg := b.Registry
	c.Singleton("metrics.registry", func(*container.Ctx) (any, error) {
		if reg != nil {
			return reg, nil
		}
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return r, nil
	})
	c.Singleton("metrics", func(ctx *container.Ctx) (any, error) {
		r, err := container.Resolve[*prometheus.Registry](ctx, "metrics.registry")
		if err != nil {
			return nil, err
		}
		return metrics.Register(r)
	})
	return nil
}

// ── Cache ─────────────────────────────────────────────────────────────────────

// CacheBootloader binds the configured cache store. A redis store is closed
// with the container.
type CacheBootloader struct {
	container.BaseBootloader
}

func (b *CacheBootloader) Register(c *container.Container) error {
	c.Singleton("cache", func(ctx *container.Ctx) (any, error) {
		cfg, err := container.Resolve[*config.Config](ctx, "config")
		if err != nil {
			return nil, err
		}
		return cache.NewStore(cfg.Cache, cfg.App.Name)
	})
	return nil
}

// ── Database ──────────────────────────────────────────────────────────────────

// DatabaseBootloader is deferred: it is only registered, and the pool only
// opened, when "db" is first resolved.
type DatabaseBootloader struct {
	container.BaseBootloader
}

func (b *DatabaseBootloader) IsDeferred() bool   { return true }
func (b *DatabaseBootloader) Provides() []string { return []string{"db"} }

func (b *DatabaseBootloader) Register(c *container.Container) error {
	c.Singleton("db", func(ctx *container.Ctx) (any, error) {
		cfg, err := container.Resolve[*config.Config](ctx, "config")
		if err != nil {
			return nil, err
		}
		return database.Open(cfg.DB)
	})
	return nil
}

// ── Core ──────────────────────────────────────────────────────────────────────

// CoreBootloader builds the action pipeline:
// Recover → Tracing → Logging → Metrics → Validate → tagged extras → actions.
type CoreBootloader struct {
	container.BaseBootloader
	Rules map[string]validation.Rules // keyed "controller.action"
}

func (b *CoreBootloader) Register(c *container.Container) error {
	rules := b.Rules
	c.Singleton("core.actions", func(ctx *container.Ctx) (any, error) {
		return core.NewActionCore(ctx.Container), nil
	})
	c.Singleton("core", func(ctx *container.Ctx) (any, error) {
		actions, err := container.Resolve[*core.ActionCore](ctx, "core.actions")
		if err != nil {
			return nil, err
		}
		logger, err := container.Resolve[*zap.Logger](ctx, "logger")
		if err != nil {
			return nil, err
		}
		tracer, err := container.Resolve[trace.Tracer](ctx, "tracer")
		if err != nil {
			return nil, err
		}
		col, err := container.Resolve[*metrics.Collectors](ctx, "metrics")
		if err != nil {
			return nil, err
		}
		chain := []core.Interceptor{
			interceptors.Recover(),
			interceptors.Tracing(tracer),
			interceptors.Logging(logger),
			interceptors.Metrics(col),
			interceptors.Validate(rules),
		}
		for _, abstract := range ctx.Container.TaggedAbstracts(InterceptorTag) {
			x, err := ctx.Make(abstract)
			if err != nil {
				return nil, err
			}
			i, ok := x.(core.Interceptor)
			if !ok {
				return nil, errs.New(errs.Interceptor, "bootloaders.Core", abstract,
					"%T tagged %q does not implement core.Interceptor", x, InterceptorTag)
			}
			chain = append(chain, i)
		}
		return core.NewPipeline(actions, chain...), nil
	})
	return nil
}

// ── HTTP ──────────────────────────────────────────────────────────────────────

// HTTPBootloader binds the dispatcher serving actions over HTTP.
type HTTPBootloader struct {
	container.BaseBootloader
}

func (b *HTTPBootloader) Register(c *container.Container) error {
	c.Singleton("http.dispatcher", func(ctx *container.Ctx) (any, error) {
		cfg, err := container.Resolve[*config.Config](ctx, "config")
		if err != nil {
			return nil, err
		}
		pipeline, err := container.Resolve[*core.Pipeline](ctx, "core")
		if err != nil {
			return nil, err
		}
		logger, err := container.Resolve[*zap.Logger](ctx, "logger")
		if err != nil {
			return nil, err
		}
		d := gohttp.NewDispatcher(pipeline, ctx.Container, logger)
		d.Debug = cfg.App.Debug
		return d, nil
	})
	return nil
}

// ── Routing ───────────────────────────────────────────────────────────────────

// RoutingBootloader binds the router. When MetricsPath is set, Boot mounts
// the Prometheus handler there.
type RoutingBootloader struct {
	container.BaseBootloader
	MetricsPath string
}

func (b *RoutingBootloader) Register(c *container.Container) error {
	c.Singleton("router", func(ctx *container.Ctx) (any, error) {
		logger, err := container.Resolve[*zap.Logger](ctx, "logger")
		if err != nil {
			return nil, err
		}
		d, err := container.Resolve[*gohttp.Dispatcher](ctx, "http.dispatcher")
		if err != nil {
			return nil, err
		}
		col, err := container.Resolve[*metrics.Collectors](ctx, "metrics")
		if err != nil {
			return nil, err
		}
		return routing.New(
			routing.WithLogger(logger),
			routing.WithDispatcher(d),
			routing.WithMetrics(col),
		), nil
	})
	return nil
}

func (b *RoutingBootloader) Boot(c *container.Container) error {
	if b.MetricsPath == "" {
		return nil
	}
	router, err := container.Resolve[*routing.Router](c, "router")
	if err != nil {
		return err
	}
	reg, err := container.Resolve[*prometheus.Registry](c, "metrics.registry")
	if err != nil {
		return err
	}
	router.Method("GET", b.MetricsPath, metrics.Handler(reg))
	return nil
}

// Framework returns the framework bootloaders in registration order.
func Framework(envFiles ...string) []container.Bootloader {
	return []container.Bootloader{
		&ConfigBootloader{EnvFiles: envFiles},
		&LoggingBootloader{},
		&TelemetryBootloader{},
		&MetricsBootloader{},
		&CacheBootloader{},
		&DatabaseBootloader{},
		&CoreBootloader{},
		&HTTPBootloader{},
		&RoutingBootloader{MetricsPath: "/metrics"},
	}
}
