package rag

import (
	"context"
	"net/http"
	"sync"

	"github.com/jonwraymond/vectorgate/health"
	"github.com/jonwraymond/vectorgate/pool"
	"github.com/jonwraymond/vectorgate/resilience"
	"github.com/jonwraymond/vectorgate/store"
)

// Manager is the synchronous façade over the resilient call path. It is
// safe for concurrent use; the pool bounds how many calls reach the
// store at once.
type Manager struct {
	core *core

	closeOnce sync.Once
	ownsCore  bool
}

// New creates a Manager connected to the store named in config.
func New(config Config, opts ...Option) (*Manager, error) {
	c, err := newCore(config, opts...)
	if err != nil {
		return nil, err
	}
	return &Manager{core: c, ownsCore: true}, nil
}

// Query runs a similarity search. Results may be served from the query
// cache when one is configured.
func (m *Manager) Query(ctx context.Context, req store.QueryRequest) (*store.QueryResult, error) {
	return m.core.query(ctx, req)
}

// Insert adds documents to a collection.
func (m *Manager) Insert(ctx context.Context, req store.AddRequest) error {
	return m.core.insert(ctx, req)
}

// CreateCollection creates a collection on the remote store.
func (m *Manager) CreateCollection(ctx context.Context, name string, metadata map[string]any) error {
	return m.core.createCollection(ctx, name, metadata)
}

// DeleteCollection removes a collection and its documents.
func (m *Manager) DeleteCollection(ctx context.Context, name string) error {
	return m.core.deleteCollection(ctx, name)
}

// Collections lists the collections on the remote store.
func (m *Manager) Collections(ctx context.Context) ([]store.CollectionInfo, error) {
	return m.core.collections(ctx)
}

// CollectionInfo fetches metadata for one collection.
func (m *Manager) CollectionInfo(ctx context.Context, name string) (*store.CollectionInfo, error) {
	return m.core.collectionInfo(ctx, name)
}

// Health returns the most recent probe record. ok is false until the
// first probe completes.
func (m *Manager) Health() (health.Record, bool) {
	return m.core.monitor.Snapshot()
}

// HealthHandler serves the latest health record over HTTP.
func (m *Manager) HealthHandler() http.Handler {
	return health.Handler(m.core.monitor)
}

// Metrics is a point-in-time performance snapshot of the call path.
type Metrics struct {
	Pool    pool.Stats
	Breaker resilience.CircuitBreakerMetrics

	// CacheEntries is the query cache occupancy, when the cache is the
	// built-in memory implementation. Zero otherwise.
	CacheEntries int
}

// Metrics returns a snapshot of pool, breaker, and cache state.
func (m *Manager) Metrics() Metrics {
	return m.core.metricsSnapshot()
}

// PoolStats reports connection pool counters.
func (m *Manager) PoolStats() pool.Stats {
	return m.core.pool.Stats()
}

// BreakerMetrics reports circuit breaker counters and state.
func (m *Manager) BreakerMetrics() resilience.CircuitBreakerMetrics {
	return m.core.breaker.Metrics()
}

// Async returns an asynchronous façade sharing this Manager's pool,
// breaker, cache, and monitor. Closing either façade closes the shared
// state; close only one.
func (m *Manager) Async() *AsyncManager {
	return &AsyncManager{
		core:     m.core,
		inFlight: newInFlight(m.core.config.MaxInFlight),
	}
}

// Close stops the health monitor and releases all pooled connections.
// In-flight calls fail with pool.ErrClosed once their held connections
// are returned.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.ownsCore {
			m.core.close()
		}
	})
}
