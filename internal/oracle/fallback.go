package oracle

import (
	"sort"
	"strings"

	"github.com/dm/esfixer/internal/model"
)

// deepPaginationFrom is the offset at which from/size paging is considered deep.
const deepPaginationFrom = 10000

// Fallback returns the deterministic proposal for issue. The same issue
// always yields the same proposal.
func Fallback(issue model.Issue, original map[string]any) model.FixProposal {
	p := model.FixProposal{
		IssueID:      issue.ID,
		OriginalCode: original,
		Source:       model.SourceFallback,
	}

	switch issue.Category {
	case model.CategoryMapping:
		p.FixedCode = map[string]any{
			"dynamic": "strict",
			"properties": map[string]any{
				"@timestamp": map[string]any{"type": "date"},
				"message":    map[string]any{"type": "text"},
				"log.level":  map[string]any{"type": "keyword"},
			},
		}
		p.Explanation = "Fallback: Detected Mapping Explosion. Solution: Disable dynamic mapping ('strict') to prevent new fields from being created automatically."
		p.EstimatedImpact = "Stops unbounded field growth"
	case model.CategoryILM:
		p.FixedCode = map[string]any{
			"policy": map[string]any{
				"phases": map[string]any{
					"hot": map[string]any{
						"actions": map[string]any{
							"rollover": map[string]any{"max_size": "50GB", "max_age": "30d"},
						},
					},
					"delete": map[string]any{
						"min_age": "90d",
						"actions": map[string]any{"delete": map[string]any{}},
					},
				},
			},
		}
		p.Explanation = "Fallback: Detected missing Lifecycle Policy. Solution: Apply standard Hot-Warm-Delete ILM policy to manage index size."
		p.EstimatedImpact = "Bounds index size through rollover and deletion"
	case model.CategoryQuery:
		query, _ := original[model.KeyQuery].(map[string]any)
		if field, term, ok := findWildcard(query); ok {
			p.FixedCode = map[string]any{
				"query": map[string]any{
					"match_phrase_prefix": map[string]any{
						field: map[string]any{"query": term},
					},
				},
			}
			p.Explanation = "Fallback: Replaced wildcard with match_phrase_prefix."
			p.EstimatedImpact = "Avoids full term dictionary scans"
			break
		}
		if from, ok := asInt(original["from"]); ok && from >= deepPaginationFrom {
			p.FixedCode = map[string]any{
				"search_after": []any{"<last_sort_value>"},
				"size":         10,
				"sort":         []any{map[string]any{"@timestamp": "desc"}},
			}
			p.Explanation = "Fallback: Replaced deep pagination with search_after."
			p.EstimatedImpact = "Constant memory per page"
			break
		}
		fallthrough
	default:
		p.FixedCode = map[string]any{}
		p.Explanation = "No fix could be generated (Fallback mode)."
		p.EstimatedImpact = "None"
	}
	return p
}

// findWildcard locates the first wildcard clause, or a value with a leading
// '*', in query. It returns the field and the search term without '*'.
func findWildcard(query map[string]any) (string, string, bool) {
	if query == nil {
		return "", "", false
	}
	if clause, ok := query["wildcard"].(map[string]any); ok {
		for _, field := range sortedKeys(clause) {
			var pattern string
			switch v := clause[field].(type) {
			case string:
				pattern = v
			case map[string]any:
				pattern, _ = v["value"].(string)
				if pattern == "" {
					pattern, _ = v["wildcard"].(string)
				}
			}
			return field, trimWildcard(pattern), true
		}
	}
	for _, k := range sortedKeys(query) {
		switch v := query[k].(type) {
		case map[string]any:
			if f, term, ok := findWildcard(v); ok {
				return f, term, true
			}
		case []any:
			for _, e := range v {
				if m, ok := e.(map[string]any); ok {
					if f, term, ok := findWildcard(m); ok {
						return f, term, true
					}
				}
			}
		case string:
			if strings.HasPrefix(v, "*") {
				field := "message"
				if f, ok := query["default_field"].(string); ok && f != "" {
					field = f
				}
				return field, trimWildcard(v), true
			}
		}
	}
	return "", "", false
}

func trimWildcard(p string) string {
	t := strings.Trim(p, "*?")
	if t == "" {
		return "search_term"
	}
	return t
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// sortedKeys returns the keys of m in order so map walks are deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
