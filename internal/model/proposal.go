package model

// Proposal sources.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Keys of FixProposal.OriginalCode.
const (
	KeyIndex    = "index"
	KeyCategory = "category"
	KeyIssue    = "issue"
	KeyMetrics  = "metrics"
	KeyQuery    = "query"
)

// FixProposal is a structured before/after change for one issue.
// OriginalCode must carry the target index under "index".
type FixProposal struct {
	IssueID         string         `json:"issue_id" validate:"required"`
	OriginalCode    map[string]any `json:"original_code" validate:"required"`
	FixedCode       map[string]any `json:"fixed_code"`
	Explanation     string         `json:"explanation"`
	EstimatedImpact string         `json:"estimated_impact"`
	Source          string         `json:"source,omitempty"`
}

// TargetIndex returns the index named in OriginalCode.
func (p FixProposal) TargetIndex() (string, bool) {
	idx, ok := p.OriginalCode[KeyIndex].(string)
	return idx, ok && idx != ""
}

// Category returns the category recorded in OriginalCode, if any.
func (p FixProposal) Category() Category {
	c, _ := p.OriginalCode[KeyCategory].(string)
	return Category(c)
}

// FixedQuery returns the query clause of FixedCode.
func (p FixProposal) FixedQuery() (map[string]any, bool) {
	q, ok := p.FixedCode[KeyQuery].(map[string]any)
	return q, ok
}

// OriginalQuery returns the query clause of OriginalCode.
func (p FixProposal) OriginalQuery() (map[string]any, bool) {
	q, ok := p.OriginalCode[KeyQuery].(map[string]any)
	return q, ok
}

// IsEmpty reports whether the proposal carries no change.
func (p FixProposal) IsEmpty() bool {
	return len(p.FixedCode) == 0
}

// Clone returns a copy with independent code maps.
func (p FixProposal) Clone() FixProposal {
	p.OriginalCode = cloneMap(p.OriginalCode)
	p.FixedCode = cloneMap(p.FixedCode)
	return p
}
