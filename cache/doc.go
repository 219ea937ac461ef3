// Package cache provides a small read-through cache for query results.
//
// Similarity searches are frequently repeated verbatim (the same prompt,
// the same collection, the same top-k), and the store round trip is the
// expensive part of serving them. The managers consult this cache before
// going to the network and populate it on the way back. Keys are
// deterministic digests of the query parameters, so identical requests
// hit regardless of which façade issued them.
package cache
