package rag

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/vectorgate/creds"
	"github.com/jonwraymond/vectorgate/target"
)

// Config configures a manager. Every field has a usable default except
// Endpoint, which is required.
type Config struct {
	// Endpoint is the base URL of the remote store.
	Endpoint string

	// Credentials authenticates requests, if the store requires it.
	Credentials creds.Credentials

	// PoolMinSize is the number of idle connections kept warm.
	// Default: 2
	PoolMinSize int

	// PoolMaxSize bounds concurrent connections to the store.
	// Default: 20
	PoolMaxSize int

	// PoolAcquireTimeout bounds the wait for a free connection.
	// Default: 5 seconds
	PoolAcquireTimeout time.Duration

	// PoolIdleTTL is how long an idle connection survives before the
	// sweep evicts it.
	// Default: 5 minutes
	PoolIdleTTL time.Duration

	// BreakerFailureThreshold is the failure count within BreakerWindow
	// that opens the circuit.
	// Default: 5
	BreakerFailureThreshold int

	// BreakerWindow is the sliding failure-counting window.
	// Default: 10 seconds
	BreakerWindow time.Duration

	// BreakerCooldown is the initial open-state duration.
	// Default: 30 seconds
	BreakerCooldown time.Duration

	// BreakerCooldownCap bounds cooldown growth across failed probes.
	// Default: 5 minutes
	BreakerCooldownCap time.Duration

	// RetryMaxAttempts is the attempt budget per call, initial included.
	// Default: 3
	RetryMaxAttempts int

	// RetryBaseBackoff is the delay before the first retry.
	// Default: 100ms
	RetryBaseBackoff time.Duration

	// RetryBackoffCap caps the backoff between attempts.
	// Default: 5 seconds
	RetryBackoffCap time.Duration

	// CallDeadline bounds one logical call end to end: pool wait,
	// attempts, and backoff sleeps included.
	// Default: 10 seconds
	CallDeadline time.Duration

	// HealthProbeInterval is how often the background probe runs.
	// Default: 30 seconds
	HealthProbeInterval time.Duration

	// RateLimit paces outbound calls per second. Zero disables pacing.
	// Default: 0
	RateLimit float64

	// CacheTTL enables the query result cache when positive.
	// Default: 0 (disabled)
	CacheTTL time.Duration

	// CacheMaxEntries bounds the query cache.
	// Default: 10000
	CacheMaxEntries int

	// CompressMin enables gzip compression of insert payloads at or
	// above this many bytes. Zero disables compression.
	// Default: 0
	CompressMin int

	// MaxInFlight bounds outstanding logical calls on the async façade.
	// Default: 4096
	MaxInFlight int
}

// FromTarget builds a Config from a deployment-target descriptor,
// picking the strongest credential the descriptor carries.
func FromTarget(t *target.Target) (Config, error) {
	if err := t.Validate(); err != nil {
		return Config{}, err
	}

	cfg := Config{Endpoint: t.Endpoint}

	switch {
	case t.TokenSecret != "":
		st, err := creds.NewServiceToken(creds.ServiceTokenConfig{
			Secret:   []byte(t.TokenSecret),
			Audience: t.Endpoint,
		})
		if err != nil {
			return Config{}, err
		}
		cfg.Credentials = st
	case t.BearerToken != "":
		cfg.Credentials = creds.BearerToken{Token: t.BearerToken}
	case t.APIKey != "":
		cfg.Credentials = creds.APIKey{Key: t.APIKey}
	}

	return cfg, nil
}

// Validate checks the configuration for construction-time errors.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("rag: endpoint is required")
	}
	if c.PoolMinSize < 0 || c.PoolMaxSize < 0 {
		return errors.New("rag: pool sizes must be non-negative")
	}
	if c.PoolMaxSize > 0 && c.PoolMinSize > c.PoolMaxSize {
		return fmt.Errorf("rag: pool min size %d exceeds max size %d", c.PoolMinSize, c.PoolMaxSize)
	}
	if c.RetryMaxAttempts < 0 {
		return errors.New("rag: retry max attempts must be non-negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rag: rate limit must be non-negative")
	}
	return nil
}

// withDefaults returns a copy with defaults applied.
func (c Config) withDefaults() Config {
	if c.PoolMinSize == 0 {
		c.PoolMinSize = 2
	}
	if c.PoolMaxSize == 0 {
		c.PoolMaxSize = 20
	}
	if c.PoolAcquireTimeout <= 0 {
		c.PoolAcquireTimeout = 5 * time.Second
	}
	if c.PoolIdleTTL <= 0 {
		c.PoolIdleTTL = 5 * time.Minute
	}
	if c.BreakerFailureThreshold <= 0 {
		c.BreakerFailureThreshold = 5
	}
	if c.BreakerWindow <= 0 {
		c.BreakerWindow = 10 * time.Second
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.BreakerCooldownCap <= 0 {
		c.BreakerCooldownCap = 5 * time.Minute
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryBaseBackoff <= 0 {
		c.RetryBaseBackoff = 100 * time.Millisecond
	}
	if c.RetryBackoffCap <= 0 {
		c.RetryBackoffCap = 5 * time.Second
	}
	if c.CallDeadline <= 0 {
		c.CallDeadline = 10 * time.Second
	}
	if c.HealthProbeInterval <= 0 {
		c.HealthProbeInterval = 30 * time.Second
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 10000
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 4096
	}
	return c
}
