package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ClientConfig configures a store client.
type ClientConfig struct {
	// Endpoint is the base URL of the remote store, e.g. "http://host:8000".
	Endpoint string

	// HTTPClient is the underlying HTTP client. Callers that pool
	// connections pass a client backed by a dedicated transport so the
	// pool can tear it down on invalidation.
	// Default: a client with a 30s request timeout.
	HTTPClient *http.Client

	// CompressMin enables gzip compression of request bodies at or above
	// this size in bytes. Document batches dominate ingestion bandwidth,
	// so this mainly affects /add.
	// Default: 0 (disabled)
	CompressMin int
}

// Client is an HTTP client for the remote vector store.
type Client struct {
	endpoint    string
	httpc       *http.Client
	compressMin int
}

// NewClient creates a new store client.
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q", ErrValidation, cfg.Endpoint)
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		httpc:       httpc,
		compressMin: cfg.CompressMin,
	}, nil
}

// Close releases idle transport resources held by the client.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

// Query performs a similarity search.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrValidation)
	}
	if req.Text == "" && len(req.Vector) == 0 {
		return nil, fmt.Errorf("%w: query text or vector is required", ErrValidation)
	}
	if req.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", ErrValidation)
	}

	var out QueryResult
	if err := c.post(ctx, "/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Add ingests a batch of documents. A response without an ack is treated
// as a rejection.
func (c *Client) Add(ctx context.Context, req AddRequest) error {
	if req.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrValidation)
	}
	if len(req.Documents) == 0 {
		return fmt.Errorf("%w: no documents to add", ErrValidation)
	}

	var out addResponse
	if err := c.post(ctx, "/add", req, &out); err != nil {
		return err
	}
	if !out.Ack {
		return fmt.Errorf("%w: add not acked", ErrRejected)
	}
	return nil
}

// Health probes the remote store's health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCollection creates a collection on the remote store.
func (c *Client) CreateCollection(ctx context.Context, name string, metadata map[string]any) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", ErrValidation)
	}
	body := CollectionInfo{Name: name, Metadata: metadata}
	return c.post(ctx, "/collections", body, nil)
}

// DeleteCollection removes a collection and its contents.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", ErrValidation)
	}
	return c.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil, nil)
}

// Collections lists all collections.
func (c *Client) Collections(ctx context.Context) ([]CollectionInfo, error) {
	var out struct {
		Collections []CollectionInfo `json:"collections"`
	}
	if err := c.get(ctx, "/collections", &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

// Collection describes a single collection.
func (c *Client) Collection(ctx context.Context, name string) (*CollectionInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrValidation)
	}
	var out CollectionInfo
	if err := c.get(ctx, "/collections/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	gzipped := false

	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if c.compressMin > 0 && len(raw) >= c.compressMin {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			if _, err := zw.Write(raw); err != nil {
				return fmt.Errorf("store: compress body: %w", err)
			}
			if err := zw.Close(); err != nil {
				return fmt.Errorf("store: compress body: %w", err)
			}
			body = &buf
			gzipped = true
		} else {
			body = bytes.NewReader(raw)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		if gzipped {
			req.Header.Set("Content-Encoding", "gzip")
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Distinguish the caller's budget expiring from a flaky attempt:
		// the former must not be retried, the latter may be.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrConnection, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{
			Status:  resp.StatusCode,
			Message: readErrorBody(resp.Body),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrConnection, err)
		}
	}
	return nil
}

// readErrorBody returns a truncated response body for error messages.
func readErrorBody(r io.Reader) string {
	const max = 256
	b, err := io.ReadAll(io.LimitReader(r, max))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
