package rag

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/vectorgate/health"
	"github.com/jonwraymond/vectorgate/store"
)

// Future is the pending result of an asynchronous call.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func resolvedFuture[T any](val T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(val, err)
	return f
}

func (f *Future[T]) resolve(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Wait blocks until the call completes or ctx is done. A ctx error here
// abandons the wait, not the call; the call keeps running under the
// context it was submitted with.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports completion without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func newInFlight(max int) *semaphore.Weighted {
	return semaphore.NewWeighted(int64(max))
}

// AsyncManager is the fire-and-collect façade. Each submitted call runs
// in its own goroutine; MaxInFlight bounds how many may be outstanding,
// and the shared pool bounds how many reach the store at once.
type AsyncManager struct {
	core     *core
	inFlight *semaphore.Weighted

	closeOnce sync.Once
	ownsCore  bool
}

// NewAsync creates a standalone AsyncManager with its own pool,
// breaker, and monitor.
func NewAsync(config Config, opts ...Option) (*AsyncManager, error) {
	c, err := newCore(config, opts...)
	if err != nil {
		return nil, err
	}
	return &AsyncManager{
		core:     c,
		inFlight: newInFlight(c.config.MaxInFlight),
		ownsCore: true,
	}, nil
}

// submit runs fn in its own goroutine once an in-flight slot is free.
func submit[T any](am *AsyncManager, ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	if err := am.inFlight.Acquire(ctx, 1); err != nil {
		var zero T
		return resolvedFuture(zero, err)
	}
	f := newFuture[T]()
	go func() {
		defer am.inFlight.Release(1)
		f.resolve(fn(ctx))
	}()
	return f
}

// Query submits a similarity search and returns immediately.
func (am *AsyncManager) Query(ctx context.Context, req store.QueryRequest) *Future[*store.QueryResult] {
	return submit(am, ctx, func(ctx context.Context) (*store.QueryResult, error) {
		return am.core.query(ctx, req)
	})
}

// Insert submits a document write and returns immediately.
func (am *AsyncManager) Insert(ctx context.Context, req store.AddRequest) *Future[struct{}] {
	return submit(am, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, am.core.insert(ctx, req)
	})
}

// BatchQuery runs the searches concurrently and blocks for all of them.
// Results align with reqs by index. The first error cancels the
// remaining calls and is returned.
func (am *AsyncManager) BatchQuery(ctx context.Context, reqs []store.QueryRequest) ([]*store.QueryResult, error) {
	results := make([]*store.QueryResult, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			if err := am.inFlight.Acquire(ctx, 1); err != nil {
				return err
			}
			defer am.inFlight.Release(1)
			res, err := am.core.query(ctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// BatchInsert runs the writes concurrently and blocks for all of them.
// The first error cancels the remaining calls and is returned.
func (am *AsyncManager) BatchInsert(ctx context.Context, reqs []store.AddRequest) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, req := range reqs {
		g.Go(func() error {
			if err := am.inFlight.Acquire(ctx, 1); err != nil {
				return err
			}
			defer am.inFlight.Release(1)
			return am.core.insert(ctx, req)
		})
	}
	return g.Wait()
}

// Health returns the most recent probe record. ok is false until the
// first probe completes.
func (am *AsyncManager) Health() (health.Record, bool) {
	return am.core.monitor.Snapshot()
}

// Metrics returns a snapshot of pool, breaker, and cache state.
func (am *AsyncManager) Metrics() Metrics {
	return am.core.metricsSnapshot()
}

// Close releases the underlying pool and monitor when this façade owns
// them. A façade obtained from Manager.Async is closed through its
// parent instead.
func (am *AsyncManager) Close() {
	am.closeOnce.Do(func() {
		if am.ownsCore {
			am.core.close()
		}
	})
}
