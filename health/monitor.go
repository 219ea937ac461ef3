package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Probe issues one lightweight check against the remote store.
type Probe func(ctx context.Context) error

// Breaker is the slice of the circuit breaker the monitor feeds. Probe
// outcomes go through the same gate and accounting as live traffic.
type Breaker interface {
	Allow() error
	RecordSuccess()
	RecordFailure()
}

// MonitorConfig configures the health monitor.
type MonitorConfig struct {
	// Interval is how often the probe runs.
	// Default: 30 seconds
	Interval time.Duration

	// ProbeTimeout bounds a single probe.
	// Default: 5 seconds
	ProbeTimeout time.Duration

	// DegradedLatency is the probe latency above which a successful
	// probe is classified Degraded instead of Healthy.
	// Default: 200ms
	DegradedLatency time.Duration

	// Probe performs the check. Required.
	Probe Probe

	// Breaker, when set, receives every probe outcome.
	Breaker Breaker

	// OnRecord is called after each new record is stored.
	OnRecord func(Record)
}

// Monitor periodically probes the remote store and retains the latest
// observation.
type Monitor struct {
	config MonitorConfig

	last atomic.Pointer[Record]

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a new health monitor. Start must be called to begin
// probing.
func NewMonitor(config MonitorConfig) (*Monitor, error) {
	if config.Probe == nil {
		return nil, errors.New("health: probe is required")
	}
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.DegradedLatency <= 0 {
		config.DegradedLatency = 200 * time.Millisecond
	}

	return &Monitor{
		config: config,
		done:   make(chan struct{}),
	}, nil
}

// Start launches the probe loop. The first probe fires immediately so a
// snapshot is available as soon as possible.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.loop()
	})
}

// Stop terminates the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

// Snapshot returns the last recorded observation without blocking on any
// network I/O. It returns false before the first probe completes.
func (m *Monitor) Snapshot() (Record, bool) {
	rec := m.last.Load()
	if rec == nil {
		return Record{}, false
	}
	return *rec, true
}

// Observe ingests a live-traffic outcome into the monitor's snapshot.
// Live calls already record into the breaker themselves, so Observe
// deliberately does not.
func (m *Monitor) Observe(latency time.Duration, err error) {
	m.store(m.classify(latency, err))
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.probeOnce()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probeOnce()
		case <-m.done:
			return
		}
	}
}

func (m *Monitor) probeOnce() {
	if m.config.Breaker != nil {
		if err := m.config.Breaker.Allow(); err != nil {
			// Circuit open: skip the network entirely and surface the
			// gating as the current health view.
			m.store(Record{
				Status:    StatusUnhealthy,
				Timestamp: time.Now(),
				Err:       err,
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ProbeTimeout)
	defer cancel()

	start := time.Now()
	err := m.config.Probe(ctx)
	latency := time.Since(start)

	if m.config.Breaker != nil {
		if err != nil {
			m.config.Breaker.RecordFailure()
		} else {
			m.config.Breaker.RecordSuccess()
		}
	}

	m.store(m.classify(latency, err))
}

func (m *Monitor) classify(latency time.Duration, err error) Record {
	rec := Record{
		Latency:   latency,
		Timestamp: time.Now(),
		Err:       err,
	}
	switch {
	case err != nil:
		rec.Status = StatusUnhealthy
	case latency > m.config.DegradedLatency:
		rec.Status = StatusDegraded
	default:
		rec.Status = StatusHealthy
	}
	return rec
}

func (m *Monitor) store(rec Record) {
	m.last.Store(&rec)
	if m.config.OnRecord != nil {
		m.config.OnRecord(rec)
	}
}
