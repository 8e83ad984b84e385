package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/flockhq/flock/internal/record"
)

// ClientConfig configures the REST client.
type ClientConfig struct {
	// BaseURL is the REST root, e.g. "https://api.example.com/rest/v1".
	BaseURL string
	// APIKey is sent as the apikey header on every request.
	APIKey string
	// BearerToken authenticates the current device ("" = anonymous).
	BearerToken string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// DefaultClientConfig returns sensible defaults (no credentials).
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout: 15 * time.Second,
	}
}

// Client is the PostgREST-style implementation of the record half of
// Service. Pair it with a BlobStore via Backend for the full interface.
type Client struct {
	config ClientConfig
	http   *http.Client
	logger *log.Logger
}

// NewClient creates a REST client. A nil logger disables logging.
func NewClient(config ClientConfig, logger *log.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultClientConfig().Timeout
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// Upsert POSTs the payload with merge-duplicates resolution, so a repeat
// of the same id updates the existing row instead of erroring.
func (c *Client) Upsert(ctx context.Context, entity record.Entity, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return remoteErr("encode "+string(entity), 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/"+string(entity), bytes.NewReader(body))
	if err != nil {
		return remoteErr("upsert "+string(entity), 0, err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return remoteErr("upsert "+string(entity), 0, err)
	}
	defer drain(resp)

	if resp.StatusCode >= 300 {
		return remoteErr("upsert "+string(entity), resp.StatusCode, errBody(resp))
	}
	return nil
}

// Select GETs rows from a collection with PostgREST filter params and
// Range pagination.
func (c *Client) Select(ctx context.Context, entity record.Entity, opts SelectOptions) ([]map[string]any, error) {
	u, err := url.Parse(c.config.BaseURL + "/" + string(entity))
	if err != nil {
		return nil, remoteErr("select "+string(entity), 0, err)
	}

	q := u.Query()
	q.Set("select", "*")
	// Deterministic param order keeps request logs diffable.
	keys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, opts.Filters[k])
	}
	if opts.Order != "" {
		q.Set("order", opts.Order)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, remoteErr("select "+string(entity), 0, err)
	}
	c.setHeaders(req)
	if opts.Limit > 0 {
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", fmt.Sprintf("%d-%d", opts.Offset, opts.Offset+opts.Limit-1))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, remoteErr("select "+string(entity), 0, err)
	}
	defer drain(resp)

	if resp.StatusCode >= 300 {
		return nil, remoteErr("select "+string(entity), resp.StatusCode, errBody(resp))
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, remoteErr("decode "+string(entity), 0, err)
	}
	return rows, nil
}

// Ping issues a HEAD against the REST root. Any response, including an
// auth rejection, proves the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.config.BaseURL+"/", nil)
	if err != nil {
		return remoteErr("ping", 0, err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return remoteErr("ping", 0, err)
	}
	defer drain(resp)
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}
	if c.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	}
}

// errBody extracts a short error description from a failed response.
func errBody(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(data) == 0 {
		return fmt.Errorf("%s", resp.Status)
	}
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
