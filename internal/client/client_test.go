package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestClient creates a DefaultClient pointed at the given test server URL.
func newTestClient(t *testing.T, baseURL string) *DefaultClient {
	t.Helper()
	c, err := NewDefaultClient(ClientConfig{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewDefaultClient: %v", err)
	}
	return c
}

func TestNewDefaultClientRequiresBaseURL(t *testing.T) {
	if _, err := NewDefaultClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for empty BaseURL")
	}
}

func TestInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"node-1","cluster_name":"test-cluster","version":{"number":"8.15.0"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	info, err := c.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.ClusterName != "test-cluster" {
		t.Errorf("ClusterName = %q, want %q", info.ClusterName, "test-cluster")
	}
	if info.Version.Number != "8.15.0" {
		t.Errorf("Version.Number = %q, want %q", info.Version.Number, "8.15.0")
	}
}

func TestAuthHeaders(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{"api key wins", ClientConfig{APIKey: "abc", Username: "u", Password: "p"}, "ApiKey abc"},
		{"basic", ClientConfig{Username: "elastic", Password: "secret"}, "Basic ZWxhc3RpYzpzZWNyZXQ="},
		{"none", ClientConfig{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				_, _ = w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			cfg := tt.cfg
			cfg.BaseURL = srv.URL
			c, err := NewDefaultClient(cfg)
			if err != nil {
				t.Fatalf("NewDefaultClient: %v", err)
			}
			if _, err := c.Info(context.Background()); err != nil {
				t.Fatalf("Info: %v", err)
			}
			if got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListIndices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_cat/indices" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if !strings.Contains(r.URL.RawQuery, "bytes=b") {
			t.Errorf("bytes=b missing from query: %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"index":"bad-ilm-logs-000001","health":"green","status":"open","docs.count":"50","store.size":"12345"},{"index":"closed","status":"close"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	indices, err := c.ListIndices(context.Background())
	if err != nil {
		t.Fatalf("ListIndices: %v", err)
	}
	if len(indices) != 2 {
		t.Fatalf("len(indices) = %d, want 2", len(indices))
	}
	if got := indices[0].StoreSizeBytes(); got != 12345 {
		t.Errorf("StoreSizeBytes = %d, want 12345", got)
	}
	if got := indices[1].StoreSizeBytes(); got != -1 {
		t.Errorf("closed StoreSizeBytes = %d, want -1", got)
	}
}

func TestGetMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logs-alias/_mapping" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		// Keyed by concrete index, not by the alias that was requested.
		_, _ = w.Write([]byte(`{"logs-000001":{"mappings":{"properties":{"msg":{"type":"text"}}}}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	m, err := c.GetMapping(context.Background(), "logs-alias")
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties missing: %v", m)
	}
	if _, ok := props["msg"]; !ok {
		t.Errorf("msg field missing: %v", props)
	}
}

func TestGetMappingEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"empty":{"mappings":{}}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	m, err := c.GetMapping(context.Background(), "empty")
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if m == nil || len(m) != 0 {
		t.Errorf("GetMapping = %v, want empty map", m)
	}
}

func TestNotFoundMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetMapping(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false, want true", err)
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if te.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", te.StatusCode)
	}
}

func TestCreateIndexAlreadyExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"},"status":400}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.CreateIndex(context.Background(), "history", nil)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("CreateIndex err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateIndexNilBodySendsNoPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if len(b) != 0 {
			t.Errorf("body = %q, want empty", b)
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.CreateIndex(context.Background(), "plain", nil); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
}

func TestExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		switch r.URL.Path {
		case "/present":
			w.WriteHeader(http.StatusOK)
		case "/absent":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	ok, err := c.Exists(ctx, "present")
	if err != nil || !ok {
		t.Errorf("Exists(present) = %v, %v; want true, nil", ok, err)
	}
	ok, err = c.Exists(ctx, "absent")
	if err != nil || ok {
		t.Errorf("Exists(absent) = %v, %v; want false, nil", ok, err)
	}
	if _, err := c.Exists(ctx, "broken"); err == nil {
		t.Error("Exists(broken): expected error on 500")
	}
}

func TestSearchDisablesCache(t *testing.T) {
	var gotQuery string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logs-*/_search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"took":7,"timed_out":false,"hits":{"total":{"value":3},"hits":[{"_index":"logs-1","_id":"a","_source":{"x":1}}]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	body := map[string]any{"query": map[string]any{"match_all": map[string]any{}}, "size": 10}
	resp, err := c.Search(context.Background(), "logs-*", body, true)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "request_cache=false" {
		t.Errorf("query = %q, want request_cache=false", gotQuery)
	}
	if gotBody["size"] != float64(10) {
		t.Errorf("body size = %v, want 10", gotBody["size"])
	}
	if resp.Took != 7 || resp.Hits.Total.Value != 3 || len(resp.Hits.Hits) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", resp.Elapsed)
	}
}

func TestSearchKeepsCacheByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want empty", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"took":1,"hits":{"total":{"value":0},"hits":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Search(context.Background(), "logs", nil, false); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestValidateQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logs/_validate/query" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["query"]; !ok {
			t.Errorf("query wrapper missing: %v", body)
		}
		_, _ = w.Write([]byte(`{"valid":false,"explanations":[{"index":"logs","valid":false,"error":"bad"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.ValidateQuery(context.Background(), "logs", map[string]any{"bogus": 1})
	if err != nil {
		t.Fatalf("ValidateQuery: %v", err)
	}
	if resp.Valid {
		t.Error("Valid = true, want false")
	}
	if len(resp.Explanations) != 1 || resp.Explanations[0].Error != "bad" {
		t.Errorf("Explanations = %+v", resp.Explanations)
	}
}

func TestValidateQueryAllIndices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_validate/query" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.ValidateQuery(context.Background(), "", map[string]any{"match_all": map[string]any{}})
	if err != nil {
		t.Fatalf("ValidateQuery: %v", err)
	}
	if !resp.Valid {
		t.Error("Valid = false, want true")
	}
}

func TestBulkSendsNDJSON(t *testing.T) {
	var lines []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			t.Errorf("Content-Type = %q", ct)
		}
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	docs := []any{map[string]any{"n": 1}, map[string]any{"n": 2}}
	if err := c.Bulk(context.Background(), "bad-ilm-logs-000001", docs); err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if len(lines) != 4 {
		t.Fatalf("len(lines) = %d, want 4: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], `"_index":"bad-ilm-logs-000001"`) {
		t.Errorf("action line = %q", lines[0])
	}
	if lines[3] != `{"n":2}` {
		t.Errorf("last doc line = %q", lines[3])
	}
}

func TestBulkItemErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":true,"items":[{"index":{"status":400}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Bulk(context.Background(), "x", []any{map[string]any{}}); err == nil {
		t.Fatal("expected error when bulk reports item failures")
	}
}

func TestIndexDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.autofixer-history/_doc" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("refresh") != "wait_for" {
			t.Errorf("refresh = %q, want wait_for", r.URL.Query().Get("refresh"))
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"doc-1","result":"created"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	id, err := c.IndexDocument(context.Background(), ".autofixer-history", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if id != "doc-1" {
		t.Errorf("id = %q, want doc-1", id)
	}
}

func TestInferenceResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"completion", `{"completion":[{"result":"hello"}]}`, "hello", false},
		{"legacy", `{"inference_results":[{"predicted_value":"legacy"}]}`, "legacy", false},
		{"empty", `{}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/_inference/completion/my-llm" {
					t.Errorf("unexpected path %q", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			got, err := c.Inference(context.Background(), "my-llm", "prompt")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Inference err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Inference = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetIndexSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bad-ilm-logs-000001/_settings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if !strings.Contains(r.URL.RawQuery, "filter_path") {
			t.Errorf("filter_path missing from query: %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"bad-ilm-logs-000001":{"settings":{"index":{"number_of_replicas":"0","lifecycle":{"name":"logs"},"mapping":{"total_fields":{"limit":"5000"}}}}}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	s, err := c.GetIndexSettings(context.Background(), "bad-ilm-logs-000001")
	if err != nil {
		t.Fatalf("GetIndexSettings: %v", err)
	}
	if !s.HasLifecyclePolicy() {
		t.Error("HasLifecyclePolicy = false, want true")
	}
	if s.Mapping.TotalFields.Limit != "5000" {
		t.Errorf("total_fields.limit = %q, want 5000", s.Mapping.TotalFields.Limit)
	}
}

func TestPutSettingsNested(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.PutSettings(context.Background(), "logs", map[string]any{
		"index.refresh_interval":   "30s",
		"index.number_of_replicas": 1,
	})
	if err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
	idx, ok := got["index"].(map[string]any)
	if !ok {
		t.Fatalf("index key missing: %v", got)
	}
	if idx["refresh_interval"] != "30s" || idx["number_of_replicas"] != float64(1) {
		t.Errorf("index settings = %v", idx)
	}
}

func TestPutSettingsEmptyIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.PutSettings(context.Background(), "logs", nil); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
}

func TestBuildNestedMap(t *testing.T) {
	in := map[string]any{
		"index.a.b": 1,
		"index.a.c": 2,
		"index":     map[string]any{"d": 3},
	}
	got := buildNestedMap(in)
	idx := got["index"].(map[string]any)
	a := idx["a"].(map[string]any)
	if a["b"] != 1 || a["c"] != 2 {
		t.Errorf("a = %v", a)
	}
	if idx["d"] != 3 {
		t.Errorf("d = %v, want 3", idx["d"])
	}
	// The caller's nested map must not be mutated by the merge.
	if len(in["index"].(map[string]any)) != 1 {
		t.Errorf("input mutated: %v", in["index"])
	}
}

func TestDeleteIndexJoinsNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if r.URL.Path != "/a,b" {
			t.Errorf("path = %q, want /a,b", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.DeleteIndex(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
}

func TestTransportErrorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.Info(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T (%v)", err, err)
	}
	if te.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", te.StatusCode)
	}
}
