package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/dm/esfixer/internal/client"
)

// MockESClient implements IndexReader and Searcher for testing.
type MockESClient struct {
	IndicesFn  func(ctx context.Context) ([]client.IndexInfo, error)
	MappingFn  func(ctx context.Context, index string) (map[string]any, error)
	SettingsFn func(ctx context.Context, index string) (*client.IndexSettingValues, error)
	SearchFn   func(ctx context.Context, index string, body map[string]any, cacheDisabled bool) (*client.SearchResponse, error)

	mu       sync.Mutex
	searches int
}

func (m *MockESClient) ListIndices(ctx context.Context) ([]client.IndexInfo, error) {
	if m.IndicesFn != nil {
		return m.IndicesFn(ctx)
	}
	return []client.IndexInfo{{Index: "test-index"}}, nil
}

func (m *MockESClient) GetMapping(ctx context.Context, index string) (map[string]any, error) {
	if m.MappingFn != nil {
		return m.MappingFn(ctx, index)
	}
	return map[string]any{"properties": map[string]any{}}, nil
}

func (m *MockESClient) GetIndexSettings(ctx context.Context, index string) (*client.IndexSettingValues, error) {
	if m.SettingsFn != nil {
		return m.SettingsFn(ctx, index)
	}
	return withPolicy("logs"), nil
}

func (m *MockESClient) Search(ctx context.Context, index string, body map[string]any, cacheDisabled bool) (*client.SearchResponse, error) {
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()
	if m.SearchFn != nil {
		return m.SearchFn(ctx, index, body, cacheDisabled)
	}
	return &client.SearchResponse{}, nil
}

func (m *MockESClient) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches
}

// withPolicy returns settings with the given lifecycle policy name ("" = none).
func withPolicy(name string) *client.IndexSettingValues {
	s := &client.IndexSettingValues{}
	s.Lifecycle.Name = name
	return s
}

// flatMapping builds a mapping with n top-level keyword fields.
func flatMapping(n int) map[string]any {
	props := make(map[string]any, n)
	for i := 0; i < n; i++ {
		props["field_"+strconv.Itoa(i)] = map[string]any{"type": "keyword"}
	}
	return map[string]any{"properties": props}
}

// errOnce returns a function that returns err exactly once, then succeeds.
// Useful for simulating transient errors.
func errOnce(err error) func() error {
	called := false
	return func() error {
		if !called {
			called = true
			return err
		}
		return nil
	}
}

var errMockFailure = errors.New("mock failure")
