package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-spiral/framework/container"
	"github.com/km-arc/go-spiral/framework/core"
	gohttp "github.com/km-arc/go-spiral/framework/http"
	"github.com/km-arc/go-spiral/framework/http/validation"
	"github.com/km-arc/go-spiral/framework/interceptors"
)

type users struct{}

func (users) Actions() core.Actions {
	return core.Actions{
		"show": func(ctx context.Context, p core.Params) (any, error) {
			scope, err := container.Active(ctx)
			if err != nil {
				return nil, err
			}
			id, err := container.Resolve[string](scope, gohttp.BindID)
			if err != nil {
				return nil, err
			}
			req, err := container.Resolve[*gohttp.Request](scope, gohttp.BindWrapped)
			if err != nil {
				return nil, err
			}
			return map[string]any{"id": p.String("id"), "request_id": id, "path": req.Path()}, nil
		},
		"store": func(ctx context.Context, p core.Params) (any, error) {
			return map[string]any{"email": p.String("email")}, nil
		},
		"ids": func(ctx context.Context, _ core.Params) (any, error) {
			scope, err := container.Active(ctx)
			if err != nil {
				return nil, err
			}
			inner, err := container.Resolve[string](scope, gohttp.BindID)
			if err != nil {
				return nil, err
			}
			outer, err := container.Resolve[string](scope.Parent(), gohttp.BindID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"inner": inner, "outer": outer, "ctx": gohttp.RequestID(ctx)}, nil
		},
		"boom": func(context.Context, core.Params) (any, error) {
			panic("kaboom")
		},
	}
}

func newDispatcher(t *testing.T, logger *zap.Logger) (*gohttp.Dispatcher, *chi.Mux) {
	t.Helper()
	c := container.New()
	c.Singleton("users", func(*container.Ctx) (any, error) { return users{}, nil })

	pipeline := core.NewPipeline(core.NewActionCore(c),
		interceptors.Recover(),
		interceptors.Validate(map[string]validation.Rules{"users.store": {"email": "required|email"}}),
	)
	d := gohttp.NewDispatcher(pipeline, c, logger)

	mux := chi.NewRouter()
	mux.Get("/users/{id}", d.HandlerFunc("users", "show"))
	mux.Post("/users", d.HandlerFunc("users", "store"))
	mux.Get("/boom", d.HandlerFunc("users", "boom"))
	mux.Get("/missing", d.HandlerFunc("nobody", "index"))
	return d, mux
}

func serve(mux http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	return rr, body
}

func TestDispatcher_Success(t *testing.T) {
	_, mux := newDispatcher(t, nil)

	rr, body := serve(mux, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, "42", data["id"])
	assert.Equal(t, "/users/42", data["path"])
	assert.Equal(t, rr.Header().Get(gohttp.HeaderID), data["request_id"])

	_, err := uuid.Parse(data["request_id"].(string))
	assert.NoError(t, err)
}

func TestDispatcher_KeepsIncomingRequestID(t *testing.T) {
	_, mux := newDispatcher(t, nil)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set(gohttp.HeaderID, id)
	rr, _ := serve(mux, req)
	assert.Equal(t, id, rr.Header().Get(gohttp.HeaderID))

	req = httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set(gohttp.HeaderID, "not-a-uuid")
	rr, _ = serve(mux, req)
	assert.NotEqual(t, "not-a-uuid", rr.Header().Get(gohttp.HeaderID))
}

func TestDispatcher_ValidationFailure(t *testing.T) {
	_, mux := newDispatcher(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rr, body := serve(mux, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	bag := body["errors"].(map[string]any)
	assert.Equal(t, []any{"The email must be a valid email address."}, bag["email"])
}

func TestDispatcher_ValidBody(t *testing.T) {
	_, mux := newDispatcher(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":"a@b.co"}`))
	req.Header.Set("Content-Type", "application/json")
	rr, body := serve(mux, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "a@b.co", body["data"].(map[string]any)["email"])
}

func TestDispatcher_Errors(t *testing.T) {
	zc, logs := observer.New(zapcore.ErrorLevel)
	d, mux := newDispatcher(t, zap.New(zc))

	rr, body := serve(mux, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, body["message"], "controller is not registered")

	rr, body = serve(mux, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Server Error.", body["message"])
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())

	d.Debug = true
	_, body = serve(mux, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Contains(t, body["message"], "kaboom")
}

func TestDispatcher_BadJSON(t *testing.T) {
	_, mux := newDispatcher(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	rr, _ := serve(mux, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	_, err := uuid.Parse(rr.Header().Get(gohttp.HeaderID))
	assert.NoError(t, err, "bad request carries a request id")
}

func TestDispatcher_NestedScopeSharesRequestID(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	mux := chi.NewRouter()
	mux.Use(gohttp.ScopeMiddleware(d.Container))
	mux.Get("/ids", d.HandlerFunc("users", "ids"))

	rr, body := serve(mux, httptest.NewRequest(http.MethodGet, "/ids", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	id := rr.Header().Get(gohttp.HeaderID)
	require.NotEmpty(t, id)
	data := body["data"].(map[string]any)
	assert.Equal(t, id, data["inner"])
	assert.Equal(t, id, data["outer"])
	assert.Equal(t, id, data["ctx"])
}

func TestScopeMiddleware(t *testing.T) {
	root := container.New()
	var scope *container.Container

	h := gohttp.ScopeMiddleware(root)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := container.Active(r.Context())
		require.NoError(t, err)
		scope = s

		got, err := container.Resolve[*http.Request](s, gohttp.BindRequest)
		require.NoError(t, err)
		assert.Equal(t, "/plain", got.URL.Path)
		assert.False(t, root.Bound(gohttp.BindRequest), "request binding leaked into root")
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/plain", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, scope)
	assert.Equal(t, gohttp.ScopeName, scope.Name())
	assert.True(t, scope.Closed())
	assert.NotEmpty(t, rr.Header().Get(gohttp.HeaderID))
}

func TestRequestLogger(t *testing.T) {
	zc, logs := observer.New(zapcore.InfoLevel)
	h := gohttp.RequestLogger(zap.New(zc))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/things", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "PUT", fields["method"])
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, int64(2), fields["bytes"])
}
