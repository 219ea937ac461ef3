package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/vectorgate/store"
)

// Sentinel errors for pool operations.
var (
	// ErrExhausted is returned when no connection becomes available
	// within the acquire timeout.
	ErrExhausted = errors.New("pool: exhausted")

	// ErrClosed is returned when the pool has been shut down.
	ErrClosed = errors.New("pool: closed")
)

// Factory creates the transport session for a new connection.
type Factory func(ctx context.Context) (*store.Client, error)

// Config configures the connection pool.
type Config struct {
	// MinSize is the number of idle connections the sweep keeps warm.
	// Default: 2
	MinSize int

	// MaxSize bounds in-use plus idle connections.
	// Default: 20
	MaxSize int

	// AcquireTimeout is how long Acquire waits for a free connection
	// once the pool is at capacity.
	// Default: 5 seconds
	AcquireTimeout time.Duration

	// IdleTTL is how long a connection may sit idle before the sweep
	// evicts it.
	// Default: 5 minutes
	IdleTTL time.Duration

	// SweepInterval is how often the idle sweep runs.
	// Default: 30 seconds
	SweepInterval time.Duration

	// Factory creates new transport sessions. Required.
	Factory Factory
}

type acquireResult struct {
	conn *Conn
	err  error
}

// waiter is one blocked acquirer. The channel is buffered so a releaser
// never blocks handing off a connection.
type waiter struct {
	ch chan acquireResult
}

// Pool is a bounded connection pool with FIFO acquisition.
type Pool struct {
	config Config

	mu      sync.Mutex
	idle    []*Conn
	inUse   map[uint64]*Conn
	total   int // in-use + idle + reserved-for-dial
	waiters []*waiter
	nextID  uint64
	closed  bool

	created   uint64
	destroyed uint64
	evicted   uint64
	timeouts  uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a new pool and starts its idle sweep.
func New(config Config) (*Pool, error) {
	if config.Factory == nil {
		return nil, errors.New("pool: factory is required")
	}
	if config.MinSize < 0 {
		config.MinSize = 0
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 20
	}
	if config.MinSize > config.MaxSize {
		config.MinSize = config.MaxSize
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = 5 * time.Second
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 5 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 30 * time.Second
	}

	p := &Pool{
		config: config,
		inUse:  make(map[uint64]*Conn),
		done:   make(chan struct{}),
	}

	p.wg.Add(1)
	go p.sweepLoop()

	return p, nil
}

// Acquire returns an idle connection, creates one if the pool is below
// capacity, or waits in FIFO order until one is released. It fails with
// ErrExhausted when the acquire timeout elapses with none available, and
// with the context's error when the caller's deadline expires first.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	if c := p.popIdleLocked(); c != nil {
		c.state = StateInUse
		p.inUse[c.id] = c
		p.mu.Unlock()
		return c, nil
	}

	if p.total < p.config.MaxSize {
		// Reserve the slot before dialing so concurrent acquirers
		// cannot overshoot MaxSize.
		p.total++
		p.mu.Unlock()
		return p.dial(ctx)
	}

	w := &waiter{ch: make(chan acquireResult, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(p.config.AcquireTimeout)
	defer timer.Stop()

	select {
	case res := <-w.ch:
		return res.conn, res.err
	case <-timer.C:
		if res, delivered := p.abandon(w); delivered {
			return res.conn, res.err
		}
		p.mu.Lock()
		p.timeouts++
		p.mu.Unlock()
		return nil, ErrExhausted
	case <-ctx.Done():
		if res, delivered := p.abandon(w); delivered {
			return res.conn, res.err
		}
		return nil, ctx.Err()
	}
}

// abandon removes w from the queue. If a handoff already happened the
// delivered result is returned instead, so a connection is never leaked
// to a departed waiter.
func (p *Pool) abandon(w *waiter) (acquireResult, bool) {
	p.mu.Lock()
	for i, queued := range p.waiters {
		if queued == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return acquireResult{}, false
		}
	}
	p.mu.Unlock()

	// Already dequeued by a releaser; the result is in flight.
	res := <-w.ch
	return res, true
}

func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	client, err := p.config.Factory(ctx)

	p.mu.Lock()
	if err != nil {
		p.total--
		p.promoteWaiterLocked()
		p.mu.Unlock()
		return nil, err
	}
	if p.closed {
		p.total--
		p.mu.Unlock()
		client.Close()
		return nil, ErrClosed
	}

	p.nextID++
	now := time.Now()
	c := &Conn{
		id:       p.nextID,
		client:   client,
		state:    StateInUse,
		created:  now,
		lastUsed: now,
	}
	p.inUse[c.id] = c
	p.created++
	p.mu.Unlock()
	return c, nil
}

// Release returns a healthy connection to the pool, handing it to the
// longest-waiting acquirer if any.
func (p *Pool) Release(c *Conn) {
	p.mu.Lock()
	if _, ok := p.inUse[c.id]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, c.id)

	if p.closed {
		p.total--
		c.state = StateBroken
		p.destroyed++
		p.mu.Unlock()
		c.client.Close()
		return
	}

	c.lastUsed = time.Now()

	if w := p.popWaiterLocked(); w != nil {
		// Stays in-use; ownership transfers directly.
		p.inUse[c.id] = c
		p.mu.Unlock()
		w.ch <- acquireResult{conn: c}
		return
	}

	c.state = StateIdle
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// Invalidate marks a connection broken and destroys its transport. The
// freed slot lets the next acquirer dial a replacement.
func (p *Pool) Invalidate(c *Conn) {
	p.mu.Lock()
	if _, ok := p.inUse[c.id]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, c.id)
	p.total--
	c.state = StateBroken
	p.destroyed++
	p.promoteWaiterLocked()
	p.mu.Unlock()

	c.client.Close()
}

// promoteWaiterLocked hands a freed capacity slot to the longest-waiting
// acquirer by dialing a replacement on its behalf.
func (p *Pool) promoteWaiterLocked() {
	if p.closed || p.total >= p.config.MaxSize {
		return
	}
	w := p.popWaiterLocked()
	if w == nil {
		return
	}
	p.total++
	go func() {
		conn, err := p.dial(context.Background())
		w.ch <- acquireResult{conn: conn, err: err}
	}()
}

func (p *Pool) popIdleLocked() *Conn {
	if len(p.idle) == 0 {
		return nil
	}
	// Most-recently-used first keeps the working set hot and lets the
	// sweep reclaim the cold tail.
	c := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]
	return c
}

func (p *Pool) popWaiterLocked() *waiter {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	return w
}

func (p *Pool) sweepLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep(time.Now())
		case <-p.done:
			return
		}
	}
}

// sweep evicts idle connections older than the idle TTL, keeping MinSize
// idle connections warm. In-use connections do not count toward the
// floor; they may be invalidated instead of released.
func (p *Pool) sweep(now time.Time) {
	var expired []*Conn

	p.mu.Lock()
	idle := len(p.idle)
	kept := p.idle[:0]
	for _, c := range p.idle {
		if idle-len(expired) > p.config.MinSize && now.Sub(c.lastUsed) > p.config.IdleTTL {
			c.state = StateBroken
			expired = append(expired, c)
			continue
		}
		kept = append(kept, c)
	}
	p.idle = kept
	p.total -= len(expired)
	p.evicted += uint64(len(expired))
	p.destroyed += uint64(len(expired))
	p.mu.Unlock()

	for _, c := range expired {
		c.client.Close()
	}
}

// Close shuts the pool down. Idle connections are destroyed immediately,
// in-use connections on release, and pending waiters fail with ErrClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	waiters := p.waiters
	p.waiters = nil
	p.total -= len(idle)
	p.destroyed += uint64(len(idle))
	for _, c := range idle {
		c.state = StateBroken
	}
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()

	for _, c := range idle {
		c.client.Close()
	}
	for _, w := range waiters {
		w.ch <- acquireResult{err: ErrClosed}
	}
}

// Stats is a point-in-time snapshot of pool state.
type Stats struct {
	InUse     int
	Idle      int
	Total     int
	Waiters   int
	MaxSize   int
	Created   uint64
	Destroyed uint64
	Evicted   uint64
	Timeouts  uint64
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		InUse:     len(p.inUse),
		Idle:      len(p.idle),
		Total:     p.total,
		Waiters:   len(p.waiters),
		MaxSize:   p.config.MaxSize,
		Created:   p.created,
		Destroyed: p.destroyed,
		Evicted:   p.evicted,
		Timeouts:  p.timeouts,
	}
}
