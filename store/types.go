package store

// QueryRequest describes a similarity search against one collection.
// Either Text or Vector must be set; Vector wins when both are present.
type QueryRequest struct {
	// Collection is the collection to search.
	Collection string `json:"collection"`

	// Text is a free-text query embedded server-side.
	Text string `json:"query,omitempty"`

	// Vector is a pre-embedded query vector.
	Vector []float32 `json:"vector,omitempty"`

	// TopK is the number of results to return.
	TopK int `json:"top_k"`
}

// QueryResult holds ranked search results. The three slices are parallel.
type QueryResult struct {
	IDs       []string  `json:"ids"`
	Distances []float32 `json:"distances"`
	Documents []string  `json:"documents"`
}

// Document is a single item to be indexed by the remote store.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text,omitempty"`
	Vector   []float32      `json:"vector,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddRequest describes a batch of documents to index into one collection.
type AddRequest struct {
	Collection string     `json:"collection"`
	Documents  []Document `json:"documents"`
}

type addResponse struct {
	Ack bool `json:"ack"`
}

// HealthStatus is the remote store's own view of its health.
type HealthStatus struct {
	Status string `json:"status"`
}

// Healthy reports whether the store claims to be serving.
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// CollectionInfo describes one collection on the remote store.
type CollectionInfo struct {
	Name     string         `json:"name"`
	Count    int64          `json:"count"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
