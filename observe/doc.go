// Package observe provides structured logging, metrics, and tracing for
// vector store calls, built on OpenTelemetry.
package observe
