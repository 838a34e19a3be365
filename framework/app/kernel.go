// Package app is the application kernel: a root container, the bootloader
// registry and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-spiral/framework/bootloaders"
	"github.com/km-arc/go-spiral/framework/config"
	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
	gohttp "github.com/km-arc/go-spiral/framework/http"
	"github.com/km-arc/go-spiral/framework/routing"
)

// Version of the framework.
const Version = "0.1.0"

const defaultShutdownTimeout = 10 * time.Second

// Application is the top-level application container.
// It embeds the root Container so user code can call app.Bind(),
// app.Singleton() and app.RunScope() directly.
type Application struct {
	*container.Container
	Bootloaders *container.Registry
}

// Option customises New.
type Option func(*settings)

type settings struct {
	envFiles    []string
	cfg         *config.Config
	bootloaders []container.Bootloader
	replace     map[string]container.Bootloader
}

// WithEnvFiles loads these .env files instead of ".env".
func WithEnvFiles(files ...string) Option {
	return func(s *settings) { s.envFiles = files }
}

// WithConfig uses cfg instead of loading configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithBootloaders registers application bootloaders after the framework's.
func WithBootloaders(b ...container.Bootloader) Option {
	return func(s *settings) { s.bootloaders = append(s.bootloaders, b...) }
}

// WithCore replaces the framework CoreBootloader, e.g. to add
// validation rules.
func WithCore(b *bootloaders.CoreBootloader) Option {
	return func(s *settings) { s.replace["core"] = b }
}

// New creates the application and registers the framework bootloaders.
// Configuration and the logger are resolved eagerly so misconfiguration
// surfaces here.
//
//	application, err := app.New(app.WithBootloaders(&UserBootloader{}))
//	if err != nil { ... }
//	err = application.Serve(ctx)
func New(opts ...Option) (*Application, error) {
	s := settings{replace: map[string]container.Bootloader{}}
	for _, opt := range opts {
		opt(&s)
	}

	c := container.New()
	a := &Application{Container: c, Bootloaders: container.NewRegistry(c)}
	c.Instance("app", a)

	for _, b := range bootloaders.Framework(s.envFiles...) {
		switch b.(type) {
		case *bootloaders.ConfigBootloader:
			if s.cfg != nil {
				b = &bootloaders.ConfigBootloader{Config: s.cfg}
			}
		case *bootloaders.CoreBootloader:
			if r, ok := s.replace["core"]; ok {
				b = r
			}
		}
		if err := a.Bootloaders.Register(b); err != nil {
			return nil, err
		}
	}

	logger, err := container.Resolve[*zap.Logger](c, "logger")
	if err != nil {
		return nil, err
	}
	a.Bootloaders.SetLogger(logger)

	for _, b := range s.bootloaders {
		if err := a.Bootloaders.Register(b); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a bootloader to the application.
func (a *Application) Register(b container.Bootloader) error {
	return a.Bootloaders.Register(b)
}

// Boot runs the Boot phase of every registered bootloader once.
func (a *Application) Boot() error {
	return a.Bootloaders.Boot()
}

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.MustResolve[*config.Config](a.Container, "config")
}

// Logger resolves the application logger.
func (a *Application) Logger() *zap.Logger {
	return container.MustResolve[*zap.Logger](a.Container, "logger")
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() *routing.Router {
	return container.MustResolve[*routing.Router](a.Container, "router")
}

// Core resolves the action pipeline.
func (a *Application) Core() *core.Pipeline {
	return container.MustResolve[*core.Pipeline](a.Container, "core")
}

// Dispatcher resolves the HTTP dispatcher.
func (a *Application) Dispatcher() *gohttp.Dispatcher {
	return container.MustResolve[*gohttp.Dispatcher](a.Container, "http.dispatcher")
}

// Call runs controller.action through the pipeline inside a scope named
// scope, the way a non-HTTP entry point (console, queue) would.
func (a *Application) Call(ctx context.Context, scope, controller, action string, params core.Params) (any, error) {
	if err := a.Boot(); err != nil {
		return nil, err
	}
	pipeline, err := container.Resolve[*core.Pipeline](a.Container, "core")
	if err != nil {
		return nil, err
	}
	var out any
	err = a.RunScope(ctx, scope, nil, func(ctx context.Context, _ *container.Container) error {
		var err error
		out, err = pipeline.CallAction(ctx, controller, action, params)
		return err
	})
	return out, err
}

// Serve boots the application and serves HTTP on the configured port until
// ctx is cancelled, then shuts down gracefully and closes the container.
func (a *Application) Serve(ctx context.Context) error {
	cfg := a.Config()
	ln, err := net.Listen("tcp", ":"+cfg.App.Port)
	if err != nil {
		return errs.Wrap(errs.Internal, "app.Serve", cfg.App.Port, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (a *Application) ServeListener(ctx context.Context, ln net.Listener) error {
	defer a.Close()

	if err := a.Boot(); err != nil {
		_ = ln.Close()
		return err
	}
	cfg := a.Config()
	logger := a.Logger()

	srv := &http.Server{
		Handler:      a.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server started",
			zap.String("app", cfg.App.Name),
			zap.String("addr", ln.Addr().String()),
			zap.String("env", cfg.App.Env),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.Wrap(errs.Internal, "app.Serve", ln.Addr().String(), err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		logger.Info("http server stopping")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases everything the root container owns.
func (a *Application) Close() error {
	return a.Container.Close()
}

// Environment returns the App.Env value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }
func (a *Application) Version() string     { return Version }
