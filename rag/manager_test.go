package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/vectorgate/health"
	"github.com/jonwraymond/vectorgate/resilience"
	"github.com/jonwraymond/vectorgate/store"
)

// fakeStore is an in-process stand-in for the remote vector store.
type fakeStore struct {
	mu        sync.Mutex
	queries   int
	inserts   int
	failures  int // remaining calls to fail with 500
	delay     time.Duration
	unhealthy bool

	srv *httptest.Server
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	fs := &fakeStore{}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeStore) handle(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	delay := fs.delay
	failing := fs.failures != 0
	if failing && fs.failures > 0 && r.URL.Path != "/health" {
		fs.failures--
	}
	unhealthy := fs.unhealthy
	if r.URL.Path == "/query" {
		fs.queries++
	}
	if r.URL.Path == "/add" {
		fs.inserts++
	}
	fs.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if r.URL.Path == "/health" {
		status := "healthy"
		if unhealthy || failing {
			status = "down"
		}
		_ = json.NewEncoder(w).Encode(store.HealthStatus{Status: status})
		return
	}

	if failing {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	switch {
	case r.URL.Path == "/query":
		var req store.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		res := store.QueryResult{}
		for i := 0; i < req.TopK; i++ {
			res.IDs = append(res.IDs, "doc-"+string(rune('a'+i)))
			res.Distances = append(res.Distances, float32(i)*0.1)
			res.Documents = append(res.Documents, "body")
		}
		_ = json.NewEncoder(w).Encode(res)
	case r.URL.Path == "/add":
		_ = json.NewEncoder(w).Encode(map[string]bool{"ack": true})
	case r.URL.Path == "/collections" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"collections": []store.CollectionInfo{{Name: "docs", Count: 7}},
		})
	case r.URL.Path == "/collections" && r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
	case strings.HasPrefix(r.URL.Path, "/collections/") && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(store.CollectionInfo{Name: "docs", Count: 7})
	case strings.HasPrefix(r.URL.Path, "/collections/") && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (fs *fakeStore) queryCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.queries
}

func (fs *fakeStore) insertCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inserts
}

func (fs *fakeStore) setFailures(n int) {
	fs.mu.Lock()
	fs.failures = n
	fs.mu.Unlock()
}

func newTestManager(t *testing.T, fs *fakeStore, mutate func(*Config), opts ...Option) *Manager {
	t.Helper()
	cfg := Config{
		Endpoint:            fs.srv.URL,
		PoolMinSize:         1,
		PoolMaxSize:         4,
		RetryMaxAttempts:    1,
		RetryBaseBackoff:    time.Millisecond,
		HealthProbeInterval: time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestManager_QueryRoundTrip(t *testing.T) {
	fs := newFakeStore(t)
	m := newTestManager(t, fs, nil)

	res, err := m.Query(context.Background(), store.QueryRequest{
		Collection: "docs",
		Text:       "find things",
		TopK:       3,
	})
	require.NoError(t, err)
	require.Len(t, res.IDs, 3)
	assert.Equal(t, "doc-a", res.IDs[0])
}

func TestManager_InsertRoundTrip(t *testing.T) {
	fs := newFakeStore(t)
	m := newTestManager(t, fs, nil)

	err := m.Insert(context.Background(), store.AddRequest{
		Collection: "docs",
		Documents:  []store.Document{{ID: "1", Text: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fs.insertCount())
}

func TestManager_CollectionLifecycle(t *testing.T) {
	fs := newFakeStore(t)
	m := newTestManager(t, fs, nil)
	ctx := context.Background()

	require.NoError(t, m.CreateCollection(ctx, "docs", map[string]any{"dim": 384}))

	infos, err := m.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "docs", infos[0].Name)

	info, err := m.CollectionInfo(ctx, "docs")
	require.NoError(t, err)
	assert.EqualValues(t, 7, info.Count)

	require.NoError(t, m.DeleteCollection(ctx, "docs"))
}

func TestManager_RetriesTransientFailures(t *testing.T) {
	fs := newFakeStore(t)
	fs.setFailures(2)
	m := newTestManager(t, fs, func(cfg *Config) {
		cfg.RetryMaxAttempts = 3
		cfg.BreakerFailureThreshold = 10
	})

	res, err := m.Query(context.Background(), store.QueryRequest{
		Collection: "docs",
		Text:       "find things",
		TopK:       1,
	})
	require.NoError(t, err)
	require.Len(t, res.IDs, 1)
	assert.Equal(t, 3, fs.queryCount())
}

func TestManager_ValidationErrorNotRetried(t *testing.T) {
	fs := newFakeStore(t)
	m := newTestManager(t, fs, func(cfg *Config) {
		cfg.RetryMaxAttempts = 5
	})

	_, err := m.Query(context.Background(), store.QueryRequest{Collection: "docs"})
	require.ErrorIs(t, err, store.ErrValidation)
	assert.Equal(t, 0, fs.queryCount())
}

func TestManager_BreakerFailsFast(t *testing.T) {
	fs := newFakeStore(t)
	fs.setFailures(-1) // fail indefinitely
	m := newTestManager(t, fs, func(cfg *Config) {
		cfg.BreakerFailureThreshold = 2
		cfg.BreakerCooldown = time.Hour
	})

	req := store.QueryRequest{Collection: "docs", Text: "q", TopK: 1}
	for i := 0; i < 2; i++ {
		_, err := m.Query(context.Background(), req)
		require.Error(t, err)
	}

	before := fs.queryCount()
	_, err := m.Query(context.Background(), req)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, fs.queryCount(), "open circuit must not reach the store")
	assert.Equal(t, resilience.StateOpen, m.BreakerMetrics().State)
}

func TestManager_ValidationErrorDoesNotSettleProbe(t *testing.T) {
	fs := newFakeStore(t)
	fs.setFailures(-1)
	m := newTestManager(t, fs, func(cfg *Config) {
		cfg.BreakerFailureThreshold = 2
		cfg.BreakerCooldown = 50 * time.Millisecond
	})

	req := store.QueryRequest{Collection: "docs", Text: "q", TopK: 1}
	for i := 0; i < 2; i++ {
		_, err := m.Query(context.Background(), req)
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, m.BreakerMetrics().State)

	// Let the cooldown elapse, then spend the half-open window on a
	// request that fails validation before reaching the wire.
	time.Sleep(60 * time.Millisecond)
	before := fs.queryCount()
	_, err := m.Query(context.Background(), store.QueryRequest{Collection: "docs"})
	require.ErrorIs(t, err, store.ErrValidation)
	assert.Equal(t, before, fs.queryCount(), "validation must fail before the store is contacted")
	assert.NotEqual(t, resilience.StateClosed, m.BreakerMetrics().State,
		"a local validation error must not close a half-open circuit")

	// The probe token was released, so a real probe can still close it.
	fs.setFailures(0)
	_, err = m.Query(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, resilience.StateClosed, m.BreakerMetrics().State)
}

func TestManager_QueryCache(t *testing.T) {
	fs := newFakeStore(t)
	m := newTestManager(t, fs, func(cfg *Config) {
		cfg.CacheTTL = time.Minute
	})

	req := store.QueryRequest{Collection: "docs", Text: "cached", TopK: 2}

	first, err := m.Query(context.Background(), req)
	require.NoError(t, err)
	second, err := m.Query(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fs.queryCount(), "second identical query must hit the cache")

	// A different query misses the cache.
	_, err = m.Query(context.Background(), store.QueryRequest{Collection: "docs", Text: "other", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, fs.queryCount())
}

func TestManager_PoolBoundsStoreConcurrency(t *testing.T) {
	fs := newFakeStore(t)
	fs.mu.Lock()
	fs.delay = 20 * time.Millisecond
	fs.mu.Unlock()

	var active, peak atomic.Int64
	gate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			defer active.Add(-1)
		}
		fs.handle(w, r)
	}))
	t.Cleanup(gate.Close)

	cfg := Config{
		Endpoint:            gate.URL,
		PoolMaxSize:         2,
		PoolAcquireTimeout:  5 * time.Second,
		RetryMaxAttempts:    1,
		HealthProbeInterval: time.Hour,
	}
	m, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Query(context.Background(), store.QueryRequest{
				Collection: "docs", Text: "q", TopK: 1,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2), "pool must bound in-flight store calls")
	assert.LessOrEqual(t, m.PoolStats().Total, 2)
}

func TestManager_HealthSnapshot(t *testing.T) {
	fs := newFakeStore(t)
	m := newTestManager(t, fs, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if rec, ok := m.Health(); ok {
			assert.Equal(t, health.StatusHealthy, rec.Status)
			break
		}
		require.False(t, time.Now().After(deadline), "no health snapshot after first probe")
		time.Sleep(5 * time.Millisecond)
	}

	rr := httptest.NewRecorder()
	m.HealthHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestManager_ConfigValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Endpoint: "http://localhost:9", PoolMinSize: 5, PoolMaxSize: 2})
	require.Error(t, err)
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	fs := newFakeStore(t)
	m := newTestManager(t, fs, nil)
	m.Close()
	m.Close()
}
