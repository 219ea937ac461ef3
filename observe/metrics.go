package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records call metrics for store operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one store call with its duration and outcome.
	RecordCall(ctx context.Context, op, collection string, duration time.Duration, err error)

	// RecordCacheLookup records a query cache hit or miss.
	RecordCacheLookup(ctx context.Context, collection string, hit bool)
}

// PoolStatsFunc reports current pool occupancy for gauge callbacks.
type PoolStatsFunc func() (inUse, idle, waiters int64)

// BreakerStateFunc reports the current breaker state as an integer
// (0=closed, 1=open, 2=half-open) for gauge callbacks.
type BreakerStateFunc func() int64

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	callCount    metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	callCount, err := meter.Int64Counter(
		"store.call.total",
		metric.WithDescription("Total number of store calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"store.call.errors",
		metric.WithDescription("Total number of failed store calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"store.call.duration_ms",
		metric.WithDescription("Store call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"store.cache.hits",
		metric.WithDescription("Query cache hits"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"store.cache.misses",
		metric.WithDescription("Query cache misses"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		callCount:    callCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
	}, nil
}

// RecordCall records metrics for one store call.
func (m *metricsImpl) RecordCall(ctx context.Context, op, collection string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("store.op", op),
	}
	if collection != "" {
		attrs = append(attrs, attribute.String("store.collection", collection))
	}
	opt := metric.WithAttributes(attrs...)

	m.callCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

// RecordCacheLookup records a cache hit or miss.
func (m *metricsImpl) RecordCacheLookup(ctx context.Context, collection string, hit bool) {
	opt := metric.WithAttributes(attribute.String("store.collection", collection))
	if hit {
		m.cacheHits.Add(ctx, 1, opt)
	} else {
		m.cacheMisses.Add(ctx, 1, opt)
	}
}

// RegisterPoolGauges registers observable gauges reporting pool
// occupancy from the given callback.
func RegisterPoolGauges(meter metric.Meter, stats PoolStatsFunc) error {
	inUse, err := meter.Int64ObservableGauge(
		"store.pool.in_use",
		metric.WithDescription("Connections currently checked out"),
	)
	if err != nil {
		return err
	}
	idle, err := meter.Int64ObservableGauge(
		"store.pool.idle",
		metric.WithDescription("Connections idle in the pool"),
	)
	if err != nil {
		return err
	}
	waiters, err := meter.Int64ObservableGauge(
		"store.pool.waiters",
		metric.WithDescription("Acquirers blocked waiting for a connection"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		u, i, w := stats()
		o.ObserveInt64(inUse, u)
		o.ObserveInt64(idle, i)
		o.ObserveInt64(waiters, w)
		return nil
	}, inUse, idle, waiters)
	return err
}

// RegisterBreakerGauge registers an observable gauge reporting circuit
// breaker state from the given callback.
func RegisterBreakerGauge(meter metric.Meter, state BreakerStateFunc) error {
	gauge, err := meter.Int64ObservableGauge(
		"store.breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, state())
		return nil
	}, gauge)
	return err
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordCall(ctx context.Context, op, collection string, duration time.Duration, err error) {
}
func (noopMetrics) RecordCacheLookup(ctx context.Context, collection string, hit bool) {}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics {
	return noopMetrics{}
}
