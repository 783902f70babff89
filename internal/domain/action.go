package domain

import (
	"time"
)

// ActionType names a unit of campaign work recorded in the agent's log.
type ActionType string

const (
	ActionDiscoverCompanies ActionType = "discover_companies"
	ActionGatherContext     ActionType = "gather_context"
	ActionGenerateEmail     ActionType = "generate_email"
	ActionSendEmail         ActionType = "send_email"
)

// ActionStatus is the outcome recorded for an action.
type ActionStatus string

const (
	ActionStarted   ActionStatus = "started"
	ActionCompleted ActionStatus = "completed"
	ActionFailed    ActionStatus = "failed"
	// ActionRejected marks an action cancelled by a human reject decision.
	ActionRejected ActionStatus = "rejected"
)

// Action is one entry of the per-agent append-only execution log.
type Action struct {
	ID          string       `json:"action_id"`
	Type        ActionType   `json:"type"`
	Target      string       `json:"target"`
	Status      ActionStatus `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Duration returns the action duration in seconds, or 0 if still running.
func (a Action) Duration() float64 {
	if a.CompletedAt == nil {
		return 0
	}
	return a.CompletedAt.Sub(a.StartedAt).Seconds()
}
