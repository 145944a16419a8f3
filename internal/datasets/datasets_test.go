package datasets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/userdash/internal/view"
)

func TestDecodeInstagramShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []InstaRecord
	}{
		{"bare array", `[{"id":2,"instagram_username":"b","age":30}]`, []InstaRecord{{ID: 2, Username: "b", Age: 30}}},
		{"users key", `{"users":[{"id":1,"instagram_username":"a","age":20}]}`, []InstaRecord{{ID: 1, Username: "a", Age: 20}}},
		{"data key", `{"data":[{"id":3,"instagram_username":"c","age":40}]}`, []InstaRecord{{ID: 3, Username: "c", Age: 40}}},
		{"unknown shape", `{"rows":[]}`, []InstaRecord{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeInstagram([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := decodeInstagram([]byte(`<html>`))
	assert.ErrorIs(t, err, errMalformed)
}

func TestDecodeNamesUnwrapsLambdaBody(t *testing.T) {
	body := `{"success":true,"lambdaResponse":{"statusCode":200,"body":"{\"success\":true,\"items\":[{\"uid\":\"u2\",\"name\":\"Zoë\"},{\"uid\":\"u1\",\"name\":\"ana\"}]}"}}`
	got, err := decodeNames([]byte(body))
	require.NoError(t, err)
	require.Len(t, got, 2)

	failed, err := decodeNames([]byte(`{"success":false}`))
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestSortNamesUsesCollation(t *testing.T) {
	records := []NameRecord{{UID: "1", Name: "Zoë"}, {UID: "2", Name: "émile"}, {UID: "3", Name: "Bob"}, {UID: "4", Name: "ana"}}
	sortNames(records)
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"ana", "Bob", "émile", "Zoë"}, names)
}

type countingBackend struct {
	hits atomic.Int32
	srv  *httptest.Server
}

func newCountingBackend(t *testing.T, status int, body string) *countingBackend {
	t.Helper()
	cb := &countingBackend{}
	cb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cb.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(cb.srv.Close)
	return cb
}

func newRedisCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestServiceCachesUntilRefresh(t *testing.T) {
	backend := newCountingBackend(t, http.StatusOK, `[{"id":5,"instagram_username":"e","age":5},{"id":1,"instagram_username":"a","age":1}]`)
	svc := NewService(Config{BackendURL: backend.srv.URL, Cache: newRedisCache(t)})
	ctx := context.Background()

	first, err := svc.Instagram(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5}, []int64{first.Records[0].ID, first.Records[1].ID})
	assert.False(t, first.FetchedAt.IsZero())

	_, err = svc.Instagram(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, backend.hits.Load())

	_, err = svc.Instagram(ctx, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, backend.hits.Load())
}

func TestServiceSharesConcurrentMisses(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"lambdaResponse":{"body":"{\"success\":true,\"items\":[{\"uid\":\"1\",\"name\":\"A\"}]}"}}`)
	}))
	t.Cleanup(srv.Close)
	svc := NewService(Config{NamesURL: srv.URL})

	var wg sync.WaitGroup
	results := make([]Snapshot[NameRecord], 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := svc.Names(context.Background(), false)
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}
	require.Eventually(t, func() bool { return hits.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, hits.Load())
	for _, snap := range results {
		require.Len(t, snap.Records, 1)
		assert.Equal(t, "A", snap.Records[0].Name)
	}
}

func TestHandlerRendersErrorState(t *testing.T) {
	backend := newCountingBackend(t, http.StatusServiceUnavailable, `{"error":"down"}`)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	svc := NewService(Config{BackendURL: backend.srv.URL, Cache: newRedisCache(t)})

	router := chi.NewRouter()
	NewHandler(nil, svc, engine, nil).MountRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/insta", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "HTTP error! status: 503")
}

func TestHandlerRendersNames(t *testing.T) {
	backend := newCountingBackend(t, http.StatusOK, `{"success":true,"lambdaResponse":{"body":"{\"success\":true,\"items\":[{\"uid\":\"u9\",\"name\":\"Mira\"}]}"}}`)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	svc := NewService(Config{NamesURL: backend.srv.URL, Cache: newRedisCache(t)})

	router := chi.NewRouter()
	NewHandler(nil, svc, engine, nil).MountRoutes(router)

	for _, target := range []string{"/names", "/names?refresh=1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Mira")
	}
	assert.EqualValues(t, 2, backend.hits.Load())
}

func TestWarmRefreshesRequestedDatasets(t *testing.T) {
	ig := newCountingBackend(t, http.StatusOK, `[]`)
	names := newCountingBackend(t, http.StatusOK, `{"success":false}`)
	svc := NewService(Config{BackendURL: ig.srv.URL, NamesURL: names.srv.URL, Cache: newRedisCache(t)})
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx))
	assert.EqualValues(t, 1, ig.hits.Load())
	assert.EqualValues(t, 1, names.hits.Load())

	require.NoError(t, svc.Warm(ctx, Names))
	assert.EqualValues(t, 1, ig.hits.Load())
	assert.EqualValues(t, 2, names.hits.Load())

	assert.Error(t, svc.Warm(ctx, "bogus"))
}

func TestServiceCanceledCallerDoesNotFailSharedLoad(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"lambdaResponse":{"body":"{\"success\":true,\"items\":[{\"uid\":\"1\",\"name\":\"A\"}]}"}}`)
	}))
	t.Cleanup(srv.Close)
	svc := NewService(Config{NamesURL: srv.URL})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Names(firstCtx, false)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan Snapshot[NameRecord], 1)
	go func() {
		snap, err := svc.Names(context.Background(), false)
		assert.NoError(t, err)
		second <- snap
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	snap := <-second
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "A", snap.Records[0].Name)
	assert.EqualValues(t, 1, hits.Load())
}
