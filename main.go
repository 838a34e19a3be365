package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/km-arc/go-spiral/framework/app"
	"github.com/km-arc/go-spiral/framework/bootloaders"
	"github.com/km-arc/go-spiral/framework/cache"
	"github.com/km-arc/go-spiral/framework/console"
	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
	gohttp "github.com/km-arc/go-spiral/framework/http"
	"github.com/km-arc/go-spiral/framework/http/validation"
	"github.com/km-arc/go-spiral/framework/routing"
)

func main() {
	application, err := app.New(
		app.WithBootloaders(&UserBootloader{}),
		app.WithCore(&bootloaders.CoreBootloader{
			Rules: map[string]validation.Rules{
				"users.store": {
					"name":  "required|min:2|max:100",
					"email": "required|email",
					"age":   "required|numeric|gte:18",
				},
			},
		}),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := console.Execute(ctx, application)
	stop()
	os.Exit(code)
}

// ── Users ─────────────────────────────────────────────────────────────────────

// UserController keeps users in memory and caches lookups.
type UserController struct {
	cache cache.Store

	mu    sync.Mutex
	users []map[string]any
}

func (c *UserController) Actions() core.Actions {
	return core.Actions{
		"index": c.Index,
		"store": c.Store,
		"show":  c.Show,
	}
}

func (c *UserController) Index(context.Context, core.Params) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.users...), nil
}

func (c *UserController) Store(_ context.Context, p core.Params) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	user := map[string]any{"id": len(c.users) + 1, "name": p.String("name"), "email": p.String("email")}
	c.users = append(c.users, user)
	return user, nil
}

func (c *UserController) Show(ctx context.Context, p core.Params) (any, error) {
	id, ok := p.Int("id")
	if !ok {
		return nil, errs.New(errs.BadAction, "users.show", p.String("id"), "id must be an integer")
	}
	return cache.Remember(ctx, c.cache, fmt.Sprintf("users:%d", id), time.Minute, func(context.Context) (string, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if id < 1 || id > len(c.users) {
			return "", errs.New(errs.NotFound, "users.show", p.String("id"), "user not found")
		}
		return c.users[id-1]["name"].(string), nil
	})
}

// UserBootloader binds the users controller and its routes.
type UserBootloader struct{ container.BaseBootloader }

func (b *UserBootloader) Register(c *container.Container) error {
	c.Singleton("users", func(ctx *container.Ctx) (any, error) {
		store, err := container.Resolve[cache.Store](ctx, "cache")
		if err != nil {
			return nil, err
		}
		return &UserController{cache: store}, nil
	})
	return nil
}

func (b *UserBootloader) Boot(c *container.Container) error {
	r, err := container.Resolve[*routing.Router](c, "router")
	if err != nil {
		return err
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Success(map[string]any{"message": "Welcome to Spiral!"})
	})

	r.Prefix("/api/v1", func(api *routing.Router) {
		api.Action(http.MethodGet, "/users", "users", "index")
		api.Action(http.MethodPost, "/users", "users", "store")
		api.Action(http.MethodGet, "/users/{id}", "users", "show")
	})

	r.Group(func(protected *routing.Router) {
		protected.Middleware(AuthMiddleware)
		protected.Get("/profile", func(w http.ResponseWriter, _ *http.Request) {
			gohttp.NewResponse(w).Success(map[string]any{"user": "authenticated"})
		})
	})
	return nil
}

// AuthMiddleware is an example bearer token guard.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gohttp.NewRequest(r).BearerToken() == "" {
			gohttp.NewResponse(w).Unauthorized()
			return
		}
		next.ServeHTTP(w, r)
	})
}
