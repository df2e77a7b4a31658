package model

import "time"

// Severity indicates the urgency level of an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Category groups issues by the kind of fix they need. It is the dispatch key
// for fallback fixes and for apply.
type Category string

const (
	CategoryQuery       Category = "query"
	CategoryMapping     Category = "mapping"
	CategoryILM         Category = "ilm"
	CategoryVector      Category = "vector"
	CategoryScript      Category = "script"
	CategoryAutoscaling Category = "autoscaling"
)

// Issue is a single misconfiguration detected on a cluster resource.
// Issues are created by the scanner and never modified afterwards.
type Issue struct {
	ID               string         `json:"id" validate:"required"`
	Severity         Severity       `json:"severity" validate:"required,oneof=critical high medium low"`
	Category         Category       `json:"category" validate:"required,oneof=query mapping ilm vector script autoscaling"`
	Description      string         `json:"description"`
	AffectedResource string         `json:"affected_resource"`
	DetectedAt       time.Time      `json:"detected_at"`
	Metrics          map[string]any `json:"metrics"`
}

// IsCritical reports whether the issue has critical severity.
func (i Issue) IsCritical() bool {
	return i.Severity == SeverityCritical
}

// Clone returns a copy whose metrics map is independent of the original.
func (i Issue) Clone() Issue {
	i.Metrics = cloneMap(i.Metrics)
	return i
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = cloneMap(vv)
		case []any:
			cp := make([]any, len(vv))
			for j, e := range vv {
				if em, ok := e.(map[string]any); ok {
					cp[j] = cloneMap(em)
				} else {
					cp[j] = e
				}
			}
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
