// Package pool provides a bounded pool of connections to the remote
// vector store.
//
// Each connection owns a dedicated HTTP transport, so invalidating a
// connection actually tears down its sockets rather than returning a
// poisoned session to the next caller. Connections are created lazily up
// to the configured maximum; when the pool is full, acquirers wait in
// strict FIFO order so sustained overload cannot starve any single
// caller. A background sweep evicts connections that have sat idle past
// their TTL, keeping resource usage bounded under bursty-then-quiet
// traffic while holding a configurable minimum warm.
package pool
