package health

import "time"

// Status represents the observed health of the remote store.
type Status int

const (
	// StatusHealthy indicates the store is responding normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the store responds, but slowly.
	StatusDegraded
	// StatusUnhealthy indicates the store is not responding properly.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Record is one observed health data point.
type Record struct {
	// Status is the classified health status.
	Status Status

	// Latency is how long the observation took.
	Latency time.Duration

	// Timestamp is when the observation was made.
	Timestamp time.Time

	// Err is the failure, if any.
	Err error
}
