package model

import "time"

// Action is the kind of step a history record captures.
type Action string

const (
	ActionProposalGenerated Action = "proposal_generated"
	ActionFixed             Action = "fixed"
	ActionFailed            Action = "failed"
)

// HistoryRecord is one append-only entry of the agent log.
// Timestamp is epoch milliseconds and is the retrieval ordering key; Seq is
// assigned on append and orders records written in the same millisecond.
type HistoryRecord struct {
	Timestamp int64          `json:"timestamp"`
	Seq       int64          `json:"seq,omitempty"`
	IssueID   string         `json:"issue_id"`
	Action    Action         `json:"action"`
	Details   map[string]any `json:"details"`
}

// NewHistoryRecord stamps a record at t.
func NewHistoryRecord(t time.Time, issueID string, action Action, details map[string]any) HistoryRecord {
	return HistoryRecord{
		Timestamp: t.UnixMilli(),
		IssueID:   issueID,
		Action:    action,
		Details:   details,
	}
}

// Time returns the record timestamp as a time.Time.
func (r HistoryRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}
