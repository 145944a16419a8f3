package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/userdash/internal/observability"
	"github.com/odyssey-erp/userdash/internal/proxy"
	"github.com/odyssey-erp/userdash/internal/shared"
	"github.com/odyssey-erp/userdash/internal/users"
	"github.com/odyssey-erp/userdash/internal/view"
)

var csrfMeta = regexp.MustCompile(`name="csrf-token" content="([^"]+)"`)

type fakeBackend struct {
	mu      sync.Mutex
	created []users.Input
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/users":
		_, _ = io.WriteString(w, `{"users":[{"id":1,"name":"Ada","email":"ada@x.io"}],"hasMore":false,"totalUsers":1,"nextStart":1}`)
	case r.Method == http.MethodPost && r.URL.Path == "/users":
		var in users.Input
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.created = append(b.created, in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(users.User{ID: int64(len(b.created) + 1), Name: in.Name, Email: in.Email})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Resource not found"}`)
	}
}

func (b *fakeBackend) Created() []users.Input {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]users.Input(nil), b.created...)
}

func newTestRouter(t *testing.T) (http.Handler, *fakeBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}
	templates, err := view.NewEngine()
	require.NoError(t, err)
	csrf := shared.NewCSRFManager("test-secret")

	proxyService := proxy.NewService(proxy.Config{BackendURL: srv.URL, Logger: logger})
	api := users.NewLocalClient(proxyService)
	searcher := users.NewSearcher(context.Background(), api, logger, time.Second)
	t.Cleanup(searcher.Close)

	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: shared.NewSessionManager(rdb, "userdash_session", time.Hour, false),
		CSRFManager:    csrf,
		ProxyHandler:   proxy.NewHandler(logger, proxyService),
		UsersHandler:   users.NewHandler(logger, users.NewStore(api, logger), searcher, templates, csrf),
		Metrics:        observability.NewMetrics(),
	})
	return router, backend, mr
}

func TestRouterHealthAndRootRedirect(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestRouterFormPostRequiresCSRFToken(t *testing.T) {
	router, backend, mr := newTestRouter(t)

	page := httptest.NewRecorder()
	router.ServeHTTP(page, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, page.Code)
	cookies := page.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.NotEmpty(t, mr.Keys(), "session persisted to redis")
	match := csrfMeta.FindStringSubmatch(page.Body.String())
	require.Len(t, match, 2)

	post := func(token string) *httptest.ResponseRecorder {
		form := url.Values{"name": {"Grace"}, "email": {"grace@x.io"}}
		if token != "" {
			form.Set(shared.CSRFFormField, token)
		}
		req := httptest.NewRequest(http.MethodPost, "/dashboard/users", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, post("").Code)
	assert.Equal(t, http.StatusForbidden, post("forged").Code)
	assert.Empty(t, backend.Created())

	ok := post(match[1])
	assert.Equal(t, http.StatusSeeOther, ok.Code)
	assert.Equal(t, []users.Input{{Name: "Grace", Email: "grace@x.io"}}, backend.Created())
}

func TestRouterProxySkipsSessionAndCSRF(t *testing.T) {
	router, backend, mr := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/proxy/users", strings.NewReader(`{"name":"Lin","email":"lin@x.io"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Empty(t, mr.Keys())
	assert.Equal(t, []users.Input{{Name: "Lin", Email: "lin@x.io"}}, backend.Created())
}

func TestRouterServesStaticAssets(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/js/dashboard.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "IntersectionObserver")
}
