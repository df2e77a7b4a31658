package client

import (
	"encoding/json"
	"strconv"
	"time"
)

// ClusterInfo represents the response from the root endpoint.
type ClusterInfo struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Version     struct {
		Number        string `json:"number"`
		BuildFlavor   string `json:"build_flavor"`
		LuceneVersion string `json:"lucene_version"`
	} `json:"version"`
}

// IndexInfo represents a single index entry from /_cat/indices (bytes=b).
type IndexInfo struct {
	Index     string `json:"index"`
	Health    string `json:"health"`
	Status    string `json:"status"`
	DocsCount string `json:"docs.count"`
	StoreSize string `json:"store.size"`
}

// StoreSizeBytes parses StoreSize. Closed indices report no size and yield -1.
func (i IndexInfo) StoreSizeBytes() int64 {
	n, err := strconv.ParseInt(i.StoreSize, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// IndexSettingValues holds the index settings the fixer reads.
type IndexSettingValues struct {
	NumberOfReplicas string `json:"number_of_replicas"`
	RefreshInterval  string `json:"refresh_interval"`
	Lifecycle        struct {
		Name          string `json:"name"`
		RolloverAlias string `json:"rollover_alias"`
	} `json:"lifecycle"`
	Mapping struct {
		TotalFields struct {
			Limit string `json:"limit"`
		} `json:"total_fields"`
	} `json:"mapping"`
}

// HasLifecyclePolicy reports whether a lifecycle policy is attached.
func (v IndexSettingValues) HasLifecyclePolicy() bool {
	return v.Lifecycle.Name != ""
}

// SearchResponse is the decoded subset of a _search response.
type SearchResponse struct {
	Took     int64      `json:"took"`
	TimedOut bool       `json:"timed_out"`
	Hits     SearchHits `json:"hits"`

	// Elapsed is measured client-side and is not part of the wire format.
	Elapsed time.Duration `json:"-"`
}

// SearchHits holds the hit list of a search response.
type SearchHits struct {
	Total struct {
		Value int64 `json:"value"`
	} `json:"total"`
	Hits []SearchHit `json:"hits"`
}

// SearchHit is one matching document.
type SearchHit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// ValidateResponse is the response from _validate/query.
type ValidateResponse struct {
	Valid        bool `json:"valid"`
	Explanations []struct {
		Index       string `json:"index"`
		Valid       bool   `json:"valid"`
		Error       string `json:"error,omitempty"`
		Explanation string `json:"explanation,omitempty"`
	} `json:"explanations,omitempty"`
}

// InferenceResponse covers both the current completion shape and the legacy
// inference_results shape.
type InferenceResponse struct {
	Completion []struct {
		Result string `json:"result"`
	} `json:"completion"`
	InferenceResults []struct {
		PredictedValue string `json:"predicted_value"`
	} `json:"inference_results"`
}

// Text returns the first generated text, if any.
func (r InferenceResponse) Text() (string, bool) {
	if len(r.Completion) > 0 && r.Completion[0].Result != "" {
		return r.Completion[0].Result, true
	}
	if len(r.InferenceResults) > 0 && r.InferenceResults[0].PredictedValue != "" {
		return r.InferenceResults[0].PredictedValue, true
	}
	return "", false
}
