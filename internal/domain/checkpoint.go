package domain

import (
	"time"
)

// CheckpointType categorizes the decision a checkpoint asks for.
type CheckpointType string

const (
	CheckpointPlanApproval      CheckpointType = "plan_approval"
	CheckpointSendApproval      CheckpointType = "send_approval"
	CheckpointErrorIntervention CheckpointType = "error_intervention"
)

// Decision is the human verdict recorded on a resolved checkpoint.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionModify  Decision = "modify"
)

// ValidDecision reports whether d is a recognized checkpoint decision.
func ValidDecision(d Decision) bool {
	return d == DecisionApprove || d == DecisionReject || d == DecisionModify
}

// RiskLevel classifies an action's potential for harm or compliance issues.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Checkpoint is a raised decision point. It transitions from unresolved to
// resolved exactly once; no field is mutated after resolution.
type Checkpoint struct {
	ID               string         `json:"checkpoint_id"`
	AgentID          string         `json:"job_id"`
	Type             CheckpointType `json:"type"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	RequiresApproval bool           `json:"requires_approval"`
	Message          string         `json:"message"`
	Data             map[string]any `json:"data,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty"`
	Decision         Decision       `json:"decision,omitempty"`
	Feedback         string         `json:"feedback,omitempty"`
	ModifiedContent  string         `json:"modified_content,omitempty"`
}

// Resolved returns true once a decision has been recorded.
func (c *Checkpoint) Resolved() bool {
	return c.ResolvedAt != nil
}

// Clone returns a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	cp := *c
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		cp.ResolvedAt = &t
	}
	if c.Data != nil {
		cp.Data = make(map[string]any, len(c.Data))
		for k, v := range c.Data {
			cp.Data[k] = v
		}
	}
	return &cp
}
