package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const settingsFilterPath = "?filter_path=*.settings.index.number_of_replicas,*.settings.index.refresh_interval,*.settings.index.lifecycle,*.settings.index.mapping.total_fields"

// GetIndexSettings fetches the subset of index settings the fixer inspects.
// Returns an error when the response carries no entry for the index.
func (c *DefaultClient) GetIndexSettings(ctx context.Context, index string) (*IndexSettingValues, error) {
	if index == "" {
		return nil, fmt.Errorf("GetIndexSettings: index must not be empty")
	}

	var result map[string]struct {
		Settings struct {
			Index IndexSettingValues `json:"index"`
		} `json:"settings"`
	}
	if err := c.getJSON(ctx, indexPath(index, "/_settings"+settingsFilterPath), &result); err != nil {
		return nil, fmt.Errorf("GetIndexSettings: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("GetIndexSettings: no settings returned for %q", index)
	}
	if entry, ok := result[index]; ok {
		return &entry.Settings.Index, nil
	}
	for _, entry := range result {
		vals := entry.Settings.Index
		return &vals, nil
	}
	return nil, fmt.Errorf("GetIndexSettings: no settings returned for %q", index)
}

// PutSettings updates index-level settings. Keys may be dotted
// ("index.refresh_interval") and are expanded into the nested form the
// cluster expects. An empty settings map is a no-op.
func (c *DefaultClient) PutSettings(ctx context.Context, index string, settings map[string]any) error {
	if index == "" {
		return fmt.Errorf("PutSettings: index must not be empty")
	}
	if len(settings) == 0 {
		return nil
	}
	if _, err := c.sendJSON(ctx, http.MethodPut, indexPath(index, "/_settings"), buildNestedMap(settings)); err != nil {
		return fmt.Errorf("PutSettings: %w", err)
	}
	return nil
}

// buildNestedMap converts a flat map with dotted keys into a nested map.
// e.g. {"index.number_of_replicas": 1} becomes {"index": {"number_of_replicas": 1}}
// Keys sharing a prefix are merged rather than overwritten.
func buildNestedMap(flat map[string]any) map[string]any {
	result := make(map[string]any)
	for key, val := range flat {
		head, rest, dotted := strings.Cut(key, ".")
		if !dotted {
			if sub, ok := val.(map[string]any); ok {
				nested := buildNestedMap(sub)
				if existing, ok := result[key].(map[string]any); ok {
					mergeNestedMaps(existing, nested)
				} else {
					result[key] = nested
				}
				continue
			}
			result[key] = val
			continue
		}
		sub, ok := result[head].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			result[head] = sub
		}
		mergeNestedMaps(sub, buildNestedMap(map[string]any{rest: val}))
	}
	return result
}

// mergeNestedMaps merges src into dst recursively. When both dst[k] and src[k]
// are maps, they are merged; otherwise src[k] overwrites dst[k].
func mergeNestedMaps(dst, src map[string]any) {
	for k, v := range src {
		if existingSub, ok := dst[k].(map[string]any); ok {
			if newSub, ok := v.(map[string]any); ok {
				mergeNestedMaps(existingSub, newSub)
				continue
			}
		}
		dst[k] = v
	}
}
