// Package store provides the HTTP transport client for a remote vector store.
//
// The remote store is treated as an opaque network service exposing three
// endpoints: POST /query for similarity search, POST /add for document
// ingestion, and GET /health for liveness probing. Collection management
// endpoints (create, delete, list, describe) are also supported.
//
// The package defines the error taxonomy shared by the resilience layers:
// transport failures map to ErrConnection, malformed requests to
// ErrValidation, and non-2xx responses to *RemoteError. Retryable reports
// whether an error is worth re-attempting, which is what the retry policy
// and circuit breaker key off.
//
// Clients are safe for concurrent use. A Client does not retry, gate, or
// pool on its own; those concerns belong to the pool, resilience, and rag
// packages that compose it.
package store
