package rag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/vectorgate/cache"
	"github.com/jonwraymond/vectorgate/creds"
	"github.com/jonwraymond/vectorgate/health"
	"github.com/jonwraymond/vectorgate/observe"
	"github.com/jonwraymond/vectorgate/pool"
	"github.com/jonwraymond/vectorgate/resilience"
	"github.com/jonwraymond/vectorgate/store"
)

// core is the shared state behind both façades: one pool, one breaker,
// one monitor per target, injected into whichever façades need them.
type core struct {
	config Config

	pool     *pool.Pool
	breaker  *resilience.CircuitBreaker
	executor *resilience.Executor
	monitor  *health.Monitor
	probe    *store.Client
	cache    cache.Cache

	logger  observe.Logger
	metrics observe.Metrics
	tracer  trace.Tracer
}

// Option configures manager construction.
type Option func(*options)

type options struct {
	observer observe.Observer
	cache    cache.Cache
}

// WithObserver wires telemetry (logger, metrics, tracing) into the
// manager.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithCache overrides the query cache implementation. The default is an
// in-memory cache sized by Config.CacheMaxEntries when Config.CacheTTL
// is positive.
func WithCache(c cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

func newCore(cfg Config, opts ...Option) (*core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &core{
		config:  cfg,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		tracer:  tracenoop.NewTracerProvider().Tracer("noop"),
	}

	if o.observer != nil {
		c.logger = o.observer.Logger().WithTarget(cfg.Endpoint)
		c.tracer = o.observer.Tracer()
		m, err := observe.NewMetrics(o.observer.Meter())
		if err != nil {
			return nil, err
		}
		c.metrics = m
	}

	c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Window:           cfg.BreakerWindow,
		Cooldown:         cfg.BreakerCooldown,
		CooldownCap:      cfg.BreakerCooldownCap,
		IsFailure:        breakerFailure,
		OnStateChange: func(from, to resilience.State) {
			c.logger.Warn(context.Background(), "circuit state changed",
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})

	p, err := pool.New(pool.Config{
		MinSize:        cfg.PoolMinSize,
		MaxSize:        cfg.PoolMaxSize,
		AcquireTimeout: cfg.PoolAcquireTimeout,
		IdleTTL:        cfg.PoolIdleTTL,
		Factory:        c.dialStore,
	})
	if err != nil {
		return nil, err
	}
	c.pool = p

	if o.observer != nil {
		meter := o.observer.Meter()
		err := observe.RegisterPoolGauges(meter, func() (inUse, idle, waiters int64) {
			s := p.Stats()
			return int64(s.InUse), int64(s.Idle), int64(s.Waiters)
		})
		if err == nil {
			err = observe.RegisterBreakerGauge(meter, func() int64 {
				return int64(c.breaker.State())
			})
		}
		if err != nil {
			p.Close()
			return nil, err
		}
	}

	execOpts := []resilience.ExecutorOption{
		resilience.WithTimeout(cfg.CallDeadline),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseBackoff: cfg.RetryBaseBackoff,
			BackoffCap:  cfg.RetryBackoffCap,
			RetryIf:     store.Retryable,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				c.logger.Warn(context.Background(), "retrying call",
					observe.Field{Key: "attempt", Value: attempt},
					observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
					observe.Field{Key: "error", Value: err.Error()},
				)
			},
		})),
	}
	if cfg.RateLimit > 0 {
		execOpts = append(execOpts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate: cfg.RateLimit,
			Wait: true,
		})))
	}
	c.executor = resilience.NewExecutor(execOpts...)

	// The probe uses its own session so health checks never compete
	// with live traffic for pool capacity.
	probe, err := c.dialStore(context.Background())
	if err != nil {
		p.Close()
		return nil, err
	}
	c.probe = probe

	mon, err := health.NewMonitor(health.MonitorConfig{
		Interval: cfg.HealthProbeInterval,
		Breaker:  c.breaker,
		Probe: func(ctx context.Context) error {
			hs, err := probe.Health(ctx)
			if err != nil {
				return err
			}
			if !hs.Healthy() {
				return errors.New("rag: store reports unhealthy")
			}
			return nil
		},
	})
	if err != nil {
		p.Close()
		probe.Close()
		return nil, err
	}
	c.monitor = mon
	mon.Start()

	if o.cache != nil {
		c.cache = o.cache
	} else if cfg.CacheTTL > 0 {
		c.cache = cache.NewMemoryCache(cfg.CacheMaxEntries)
	}

	return c, nil
}

// dialStore builds one transport session. Each session owns its own
// HTTP transport so invalidation actually closes sockets.
func (c *core) dialStore(_ context.Context) (*store.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = 2
	tr.IdleConnTimeout = c.config.PoolIdleTTL

	var rt http.RoundTripper = tr
	if c.config.Credentials != nil {
		rt = &creds.Transport{Base: tr, Credentials: c.config.Credentials}
	}

	return store.NewClient(store.ClientConfig{
		Endpoint:    c.config.Endpoint,
		HTTPClient:  &http.Client{Transport: rt},
		CompressMin: c.config.CompressMin,
	})
}

// breakerFailure classifies which call outcomes count against the
// circuit. Transient transport and 5xx-class errors do; remote
// rejections and other 4xx replies are completed round trips and count
// as success. Validation errors never reach this classifier, they
// abort the attempt before recording.
func breakerFailure(err error) bool {
	if err == nil {
		return false
	}
	return store.Retryable(err) || errors.Is(err, context.DeadlineExceeded)
}

// do runs one logical call through the full resilient path and records
// its outcome everywhere it is accounted: breaker, health, metrics,
// trace, and log.
func (c *core) do(ctx context.Context, op, collection string, fn func(ctx context.Context, cl *store.Client) error) error {
	ctx, span := observe.StartCall(ctx, c.tracer, op, collection)
	start := time.Now()

	err := c.executor.Execute(ctx, func(ctx context.Context) error {
		return c.attempt(ctx, fn)
	})

	latency := time.Since(start)
	c.monitor.Observe(latency, err)
	c.metrics.RecordCall(ctx, op, collection, latency, err)
	observe.EndCall(span, err)

	if err != nil {
		c.logger.Warn(ctx, "store call failed",
			observe.Field{Key: "op", Value: op},
			observe.Field{Key: "collection", Value: collection},
			observe.Field{Key: "latency_ms", Value: latency.Milliseconds()},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	return err
}

// attempt is one breaker-gated attempt: gate, acquire, call, then
// release or invalidate and record. The retry policy re-invokes it for
// transient failures, so every attempt is gated and accounted
// individually.
func (c *core) attempt(ctx context.Context, fn func(ctx context.Context, cl *store.Client) error) error {
	if err := c.breaker.Allow(); err != nil {
		return err
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		// Local failure: the remote store was never contacted, so it
		// must not shift breaker state either way.
		c.breaker.Abort()
		return err
	}

	err = fn(ctx, conn.Client())
	if errors.Is(err, store.ErrConnection) {
		c.pool.Invalidate(conn)
	} else {
		c.pool.Release(conn)
	}

	if errors.Is(err, store.ErrValidation) {
		// Validation fails before any bytes leave the process. Like
		// pool exhaustion above, it carries no signal about the remote
		// store and must not settle a half-open probe.
		c.breaker.Abort()
		return err
	}

	c.breaker.Record(err)
	return err
}

// query runs a similarity search through the cache and the resilient
// call path.
func (c *core) query(ctx context.Context, req store.QueryRequest) (*store.QueryResult, error) {
	var key string
	if c.cache != nil {
		key = cache.QueryKey(req.Collection, req.Text, req.Vector, req.TopK)
		if raw, ok := c.cache.Get(ctx, key); ok {
			var cached store.QueryResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.metrics.RecordCacheLookup(ctx, req.Collection, true)
				return &cached, nil
			}
			_ = c.cache.Delete(ctx, key)
		}
		c.metrics.RecordCacheLookup(ctx, req.Collection, false)
	}

	var res *store.QueryResult
	err := c.do(ctx, "query", req.Collection, func(ctx context.Context, cl *store.Client) error {
		r, err := cl.Query(ctx, req)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if raw, err := json.Marshal(res); err == nil {
			_ = c.cache.Set(ctx, key, raw, c.config.CacheTTL)
		}
	}
	return res, nil
}

func (c *core) insert(ctx context.Context, req store.AddRequest) error {
	return c.do(ctx, "insert", req.Collection, func(ctx context.Context, cl *store.Client) error {
		return cl.Add(ctx, req)
	})
}

func (c *core) createCollection(ctx context.Context, name string, metadata map[string]any) error {
	return c.do(ctx, "create_collection", name, func(ctx context.Context, cl *store.Client) error {
		return cl.CreateCollection(ctx, name, metadata)
	})
}

func (c *core) deleteCollection(ctx context.Context, name string) error {
	return c.do(ctx, "delete_collection", name, func(ctx context.Context, cl *store.Client) error {
		return cl.DeleteCollection(ctx, name)
	})
}

func (c *core) collections(ctx context.Context) ([]store.CollectionInfo, error) {
	var infos []store.CollectionInfo
	err := c.do(ctx, "list_collections", "", func(ctx context.Context, cl *store.Client) error {
		out, err := cl.Collections(ctx)
		if err != nil {
			return err
		}
		infos = out
		return nil
	})
	return infos, err
}

func (c *core) collectionInfo(ctx context.Context, name string) (*store.CollectionInfo, error) {
	var info *store.CollectionInfo
	err := c.do(ctx, "collection_info", name, func(ctx context.Context, cl *store.Client) error {
		out, err := cl.Collection(ctx, name)
		if err != nil {
			return err
		}
		info = out
		return nil
	})
	return info, err
}

func (c *core) metricsSnapshot() Metrics {
	snap := Metrics{
		Pool:    c.pool.Stats(),
		Breaker: c.breaker.Metrics(),
	}
	if mc, ok := c.cache.(*cache.MemoryCache); ok {
		snap.CacheEntries = mc.Len()
	}
	return snap
}

func (c *core) close() {
	c.monitor.Stop()
	c.pool.Close()
	c.probe.Close()
}
