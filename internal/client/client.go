package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ESClient is the resource store contract used by the fixer pipeline.
// Implementations perform no retries; retry policy belongs to the caller.
type ESClient interface {
	Info(ctx context.Context) (*ClusterInfo, error)
	Ping(ctx context.Context) error
	ListIndices(ctx context.Context) ([]IndexInfo, error)
	GetMapping(ctx context.Context, index string) (map[string]any, error)
	PutMapping(ctx context.Context, index string, body map[string]any) error
	GetIndexSettings(ctx context.Context, index string) (*IndexSettingValues, error)
	PutSettings(ctx context.Context, index string, settings map[string]any) error
	PutAlias(ctx context.Context, index, alias string) error
	Search(ctx context.Context, index string, body map[string]any, cacheDisabled bool) (*SearchResponse, error)
	ValidateQuery(ctx context.Context, index string, query map[string]any) (*ValidateResponse, error)
	Exists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]any) error
	IndexDocument(ctx context.Context, index string, doc any) (string, error)
	Bulk(ctx context.Context, index string, docs []any) error
	GetLifecyclePolicy(ctx context.Context, name string) (map[string]any, error)
	DeleteIndex(ctx context.Context, names []string) error
	Inference(ctx context.Context, inferenceID, input string) (string, error)
	BaseURL() string
}

// ClientConfig holds configuration for DefaultClient.
type ClientConfig struct {
	BaseURL            string
	Username           string
	Password           string
	APIKey             string
	InsecureSkipVerify bool
	RequestTimeout     time.Duration
}

var (
	// ErrNotFound is returned (wrapped) when the cluster answers 404.
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned (wrapped) when an index creation races another.
	ErrAlreadyExists = errors.New("resource already exists")
)

// TransportError describes a failed round trip to the cluster: either the
// request never completed (StatusCode == 0) or it completed with a non-2xx status.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DefaultClient implements ESClient using the standard net/http package.
type DefaultClient struct {
	http   *http.Client
	config ClientConfig
}

// NewDefaultClient constructs a DefaultClient from the given config.
// It configures TLS skip-verify and request timeout from the config.
// Returns an error if BaseURL is empty.
func NewDefaultClient(cfg ClientConfig) (*DefaultClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	return &DefaultClient{
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		config: cfg,
	}, nil
}

// BaseURL returns the configured base URL of the Elasticsearch cluster.
func (c *DefaultClient) BaseURL() string {
	return c.config.BaseURL
}

// Close releases idle keep-alive connections.
func (c *DefaultClient) Close() {
	c.http.CloseIdleConnections()
}

// do performs a request to the given path (relative to BaseURL).
// It sets Accept: application/json and either ApiKey or Basic auth.
// Returns the response body bytes or a *TransportError on failure.
func (c *DefaultClient) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	switch {
	case c.config.APIKey != "":
		req.Header.Set("Authorization", "ApiKey "+c.config.APIKey)
	case c.config.Username != "" || c.config.Password != "":
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	const maxResponseBytes = 32 * 1024 * 1024
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}
	if len(respBody) > maxResponseBytes {
		return nil, &TransportError{Err: fmt.Errorf("response body exceeds %d MB limit", maxResponseBytes/(1024*1024))}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// IsNotFound reports whether err was caused by a 404 from the cluster.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func isNotFound(err error) bool { return IsNotFound(err) }

func statusError(status int, body []byte) *TransportError {
	e := &TransportError{StatusCode: status, Body: truncate(body, 200)}
	switch {
	case status == http.StatusNotFound:
		e.Err = ErrNotFound
	case status == http.StatusBadRequest && bytes.Contains(body, []byte("resource_already_exists_exception")):
		e.Err = ErrAlreadyExists
	default:
		e.Err = fmt.Errorf("status %d", status)
	}
	return e
}

// Ping checks connectivity by calling the root endpoint with a 1s timeout.
func (c *DefaultClient) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	_, err := c.do(pingCtx, http.MethodGet, endpointRoot, nil, "")
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
