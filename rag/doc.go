// Package rag provides the resilient client façades for a remote vector
// store.
//
// A Manager composes a bounded connection pool, a circuit breaker, a
// retry policy, and a health monitor into one call path: gate on the
// breaker, acquire a connection, run the retry-wrapped remote call,
// release or invalidate the connection, and record the outcome into the
// breaker and health accounting. The sync Manager blocks the calling
// goroutine for the full call; the AsyncManager runs the identical call
// path as a submitted task and hands back a Future, so thousands of
// logical calls can be outstanding over the Go runtime's small fixed
// set of OS threads.
//
// Both façades constructed for the same target share one pool, breaker,
// and monitor, since that state reflects the health of the target
// rather than of any particular façade.
package rag
