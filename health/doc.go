// Package health monitors the remote vector store.
//
// A Monitor runs a background loop that issues a lightweight probe at a
// fixed interval, classifies the outcome by success and latency, and
// keeps the most recent Record in an atomic snapshot that callers read
// without touching the network. Probe outcomes are fed into the same
// circuit breaker accounting used by live traffic, so a sustained probe
// failure can open the circuit with no live load at all, and the first
// probe after a cooldown serves as the breaker's half-open trial.
package health
