package pool

import (
	"time"

	"github.com/jonwraymond/vectorgate/store"
)

// ConnState represents the lifecycle state of a pooled connection.
type ConnState int

const (
	// StateIdle means the connection is in the pool, ready to be acquired.
	StateIdle ConnState = iota
	// StateInUse means the connection is checked out to exactly one caller.
	StateInUse
	// StateBroken means the connection was invalidated and its transport
	// destroyed.
	StateBroken
)

// String returns the string representation of the state.
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInUse:
		return "in-use"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Conn is a single logical session to the remote store. It is owned by
// the pool except while checked out to exactly one caller.
type Conn struct {
	id     uint64
	client *store.Client

	// Guarded by the owning pool's mutex.
	state    ConnState
	created  time.Time
	lastUsed time.Time
}

// ID returns the connection's pool-unique identity.
func (c *Conn) ID() uint64 {
	return c.id
}

// Client returns the transport session bound to this connection.
func (c *Conn) Client() *store.Client {
	return c.client
}
