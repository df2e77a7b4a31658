package model

// ApplyStatus is the outcome of applying a fix.
type ApplyStatus string

const (
	ApplySuccess ApplyStatus = "success"
	ApplySkipped ApplyStatus = "skipped"
	ApplyError   ApplyStatus = "error"
)

// ApplyResult reports how an apply ended. Degraded marks a success that
// stood in for the requested change without performing it.
type ApplyResult struct {
	Status   ApplyStatus `json:"status"`
	Message  string      `json:"message"`
	Degraded bool        `json:"degraded,omitempty"`
}

// CycleStatus is the terminal state of one agent cycle.
type CycleStatus string

const (
	CycleIdle           CycleStatus = "idle"
	CycleActionRequired CycleStatus = "action_required"
	CycleError          CycleStatus = "error"
)

// CycleResult is returned by a diagnose-propose-record cycle.
type CycleResult struct {
	Status      CycleStatus  `json:"status"`
	Message     string       `json:"message,omitempty"`
	CycleID     string       `json:"cycle_id,omitempty"`
	TargetIssue *Issue       `json:"target_issue,omitempty"`
	Proposal    *FixProposal `json:"proposal,omitempty"`
}
