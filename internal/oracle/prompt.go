package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dm/esfixer/internal/model"
)

// ErrMalformedReply is returned when a provider reply is not a usable fix.
var ErrMalformedReply = errors.New("malformed provider reply")

// queryKeys are copied from issue metrics into the original code so the
// benchmarker and validator can reach them.
var queryKeys = []string{"query", "from", "size"}

// OriginalCode describes the problem for the prompt and carries the target
// index for apply.
func OriginalCode(issue model.Issue) map[string]any {
	code := map[string]any{
		model.KeyIndex:    issue.AffectedResource,
		model.KeyCategory: string(issue.Category),
		model.KeyIssue:    issue.Description,
		model.KeyMetrics:  issue.Clone().Metrics,
	}
	if issue.Category == model.CategoryQuery {
		for _, k := range queryKeys {
			if v, ok := issue.Metrics[k]; ok {
				code[k] = v
			}
		}
	}
	return code
}

const promptTemplate = `You are an Elasticsearch expert.
Context: %s
Issue category: %s
Problem Code: %s

Task:
1. Fix the problem code.
2. Return ONLY a valid JSON object, no markdown.
3. Structure: {"fixed_code": {...}, "explanation": "...", "estimated_impact": "..."}
4. For mapping problems fixed_code holds the mapping ("dynamic", "properties").
   For lifecycle problems fixed_code holds {"policy": {...}}.
   For query problems fixed_code holds {"query": {...}}.`

// BuildPrompt renders the provider prompt.
func BuildPrompt(advice string, category model.Category, original map[string]any) (string, error) {
	code, err := json.Marshal(original)
	if err != nil {
		return "", fmt.Errorf("encode original code: %w", err)
	}
	return fmt.Sprintf(promptTemplate, advice, category, code), nil
}

// Reply is the structured part of a provider response.
type Reply struct {
	FixedCode       map[string]any `json:"fixed_code"`
	Explanation     string         `json:"explanation"`
	EstimatedImpact string         `json:"estimated_impact"`
}

// ParseReply decodes a provider reply, tolerating markdown code fences.
// A reply without a fixed_code object is malformed.
func ParseReply(text string) (*Reply, error) {
	body := stripFences(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedReply)
	}
	var r Reply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if r.FixedCode == nil {
		return nil, fmt.Errorf("%w: missing fixed_code", ErrMalformedReply)
	}
	if r.Explanation == "" {
		r.Explanation = "Generated fix."
	}
	if r.EstimatedImpact == "" {
		r.EstimatedImpact = "Unknown"
	}
	return &r, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
