package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	endpointRoot      = "/"
	endpointIndices   = "/_cat/indices?format=json&bytes=b&h=index,health,status,docs.count,store.size&s=index"
	endpointBulk      = "/_bulk?refresh=wait_for"
	endpointILMPolicy = "/_ilm/policy/"
	endpointInference = "/_inference/completion/"
	endpointValidate  = "/_validate/query?explain=true"

	contentTypeJSON   = "application/json"
	contentTypeNDJSON = "application/x-ndjson"
)

// indexPath builds "/<escaped index><suffix>".
func indexPath(index, suffix string) string {
	return "/" + url.PathEscape(index) + suffix
}

func (c *DefaultClient) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (c *DefaultClient) sendJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
	}
	return c.do(ctx, method, path, raw, contentTypeJSON)
}

// Info fetches the cluster name and version from the root endpoint.
func (c *DefaultClient) Info(ctx context.Context) (*ClusterInfo, error) {
	var result ClusterInfo
	if err := c.getJSON(ctx, endpointRoot, &result); err != nil {
		return nil, fmt.Errorf("Info: %w", err)
	}
	return &result, nil
}

// ListIndices fetches the list of indices from /_cat/indices.
func (c *DefaultClient) ListIndices(ctx context.Context) ([]IndexInfo, error) {
	var result []IndexInfo
	if err := c.getJSON(ctx, endpointIndices, &result); err != nil {
		return nil, fmt.Errorf("ListIndices: %w", err)
	}
	return result, nil
}

// GetMapping returns the "mappings" object of a single index.
// An index without any mapped fields yields an empty, non-nil map.
func (c *DefaultClient) GetMapping(ctx context.Context, index string) (map[string]any, error) {
	if index == "" {
		return nil, fmt.Errorf("GetMapping: index must not be empty")
	}
	var result map[string]struct {
		Mappings map[string]any `json:"mappings"`
	}
	if err := c.getJSON(ctx, indexPath(index, "/_mapping"), &result); err != nil {
		return nil, fmt.Errorf("GetMapping: %w", err)
	}
	// The response is keyed by concrete index name, which differs from the
	// requested name when an alias is used.
	entry, ok := result[index]
	if !ok {
		for _, v := range result {
			entry = v
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("GetMapping: %w", ErrNotFound)
	}
	if entry.Mappings == nil {
		return map[string]any{}, nil
	}
	return entry.Mappings, nil
}

// PutMapping updates the mapping of index with body.
func (c *DefaultClient) PutMapping(ctx context.Context, index string, body map[string]any) error {
	if index == "" {
		return fmt.Errorf("PutMapping: index must not be empty")
	}
	if _, err := c.sendJSON(ctx, http.MethodPut, indexPath(index, "/_mapping"), body); err != nil {
		return fmt.Errorf("PutMapping: %w", err)
	}
	return nil
}

// PutAlias points alias at index.
func (c *DefaultClient) PutAlias(ctx context.Context, index, alias string) error {
	if index == "" || alias == "" {
		return fmt.Errorf("PutAlias: index and alias must not be empty")
	}
	if _, err := c.do(ctx, http.MethodPut, indexPath(index, "/_alias/"+url.PathEscape(alias)), nil, ""); err != nil {
		return fmt.Errorf("PutAlias: %w", err)
	}
	return nil
}

// Search runs body against index. When cacheDisabled is true the shard
// request cache is bypassed so repeated runs measure real execution.
// Elapsed is the client-observed wall-clock time of the round trip.
func (c *DefaultClient) Search(ctx context.Context, index string, body map[string]any, cacheDisabled bool) (*SearchResponse, error) {
	if index == "" {
		return nil, fmt.Errorf("Search: index must not be empty")
	}
	path := indexPath(index, "/_search")
	if cacheDisabled {
		path += "?request_cache=false"
	}

	start := time.Now()
	raw, err := c.sendJSON(ctx, http.MethodPost, path, body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	var result SearchResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("Search decode: %w", err)
	}
	result.Elapsed = elapsed
	return &result, nil
}

// ValidateQuery performs a non-mutating syntax check of query. An empty
// index validates against all indices.
func (c *DefaultClient) ValidateQuery(ctx context.Context, index string, query map[string]any) (*ValidateResponse, error) {
	path := endpointValidate
	if index != "" {
		path = indexPath(index, endpointValidate)
	}
	raw, err := c.sendJSON(ctx, http.MethodPost, path, map[string]any{"query": query})
	if err != nil {
		return nil, fmt.Errorf("ValidateQuery: %w", err)
	}

	var result ValidateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("ValidateQuery decode: %w", err)
	}
	return &result, nil
}

// Exists reports whether index exists using HEAD /<index>.
func (c *DefaultClient) Exists(ctx context.Context, index string) (bool, error) {
	if index == "" {
		return false, fmt.Errorf("Exists: index must not be empty")
	}
	_, err := c.do(ctx, http.MethodHead, indexPath(index, ""), nil, "")
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("Exists: %w", err)
}

// CreateIndex creates index with the given settings/mappings body (may be nil).
// A concurrent creation surfaces as ErrAlreadyExists.
func (c *DefaultClient) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	if index == "" {
		return fmt.Errorf("CreateIndex: index must not be empty")
	}
	var payload any
	if body != nil {
		payload = body
	}
	if _, err := c.sendJSON(ctx, http.MethodPut, indexPath(index, ""), payload); err != nil {
		return fmt.Errorf("CreateIndex: %w", err)
	}
	return nil
}

// IndexDocument stores doc in index and waits for it to become searchable.
// Returns the generated document id.
func (c *DefaultClient) IndexDocument(ctx context.Context, index string, doc any) (string, error) {
	if index == "" {
		return "", fmt.Errorf("IndexDocument: index must not be empty")
	}
	raw, err := c.sendJSON(ctx, http.MethodPost, indexPath(index, "/_doc?refresh=wait_for"), doc)
	if err != nil {
		return "", fmt.Errorf("IndexDocument: %w", err)
	}
	var result struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("IndexDocument decode: %w", err)
	}
	return result.ID, nil
}

// Bulk indexes docs into index with a single NDJSON request.
// Per-item failures reported by the cluster are returned as an error.
func (c *DefaultClient) Bulk(ctx context.Context, index string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	action, err := json.Marshal(map[string]any{"index": map[string]string{"_index": index}})
	if err != nil {
		return fmt.Errorf("Bulk: %w", err)
	}

	var buf bytes.Buffer
	for _, d := range docs {
		line, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("Bulk encode: %w", err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(line)
		buf.WriteByte('\n')
	}

	raw, err := c.do(ctx, http.MethodPost, endpointBulk, buf.Bytes(), contentTypeNDJSON)
	if err != nil {
		return fmt.Errorf("Bulk: %w", err)
	}
	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("Bulk decode: %w", err)
	}
	if result.Errors {
		return fmt.Errorf("Bulk: one or more items failed: %s", truncate(raw, 200))
	}
	return nil
}

// GetLifecyclePolicy returns the lifecycle policy named name.
// A missing policy surfaces as ErrNotFound.
func (c *DefaultClient) GetLifecyclePolicy(ctx context.Context, name string) (map[string]any, error) {
	if name == "" {
		return nil, fmt.Errorf("GetLifecyclePolicy: name must not be empty")
	}
	var result map[string]any
	if err := c.getJSON(ctx, endpointILMPolicy+url.PathEscape(name), &result); err != nil {
		return nil, fmt.Errorf("GetLifecyclePolicy: %w", err)
	}
	return result, nil
}

// DeleteIndex deletes one or more indices by name.
// Names are joined with commas into a single DELETE /<names> request.
func (c *DefaultClient) DeleteIndex(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("DeleteIndex: names must not be empty")
	}
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = url.PathEscape(n)
	}
	path := "/" + strings.Join(escaped, ",")
	if _, err := c.do(ctx, http.MethodDelete, path, nil, ""); err != nil {
		return fmt.Errorf("DeleteIndex: %w", err)
	}
	return nil
}

// Inference sends input to a completion endpoint deployed on the cluster and
// returns the generated text.
func (c *DefaultClient) Inference(ctx context.Context, inferenceID, input string) (string, error) {
	if inferenceID == "" {
		return "", fmt.Errorf("Inference: inference id must not be empty")
	}
	raw, err := c.sendJSON(ctx, http.MethodPost, endpointInference+url.PathEscape(inferenceID), map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("Inference: %w", err)
	}

	var result InferenceResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("Inference decode: %w", err)
	}
	text, ok := result.Text()
	if !ok {
		return "", fmt.Errorf("Inference: empty completion")
	}
	return text, nil
}
