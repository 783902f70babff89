// Package domain contains core domain types for the RevReach campaign engine.
package domain

import (
	"time"
)

// Status is the lifecycle state of a campaign agent.
type Status string

const (
	StatusPlanning        Status = "planning"
	StatusExecuting       Status = "executing"
	StatusWaitingApproval Status = "waiting_approval"
	StatusPaused          Status = "paused"
	StatusStopped         Status = "stopped"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Terminal returns true if no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// AutonomyLevel controls whether checkpoints block on human approval.
type AutonomyLevel string

const (
	// AutonomySupervised raises blocking checkpoints for risky actions.
	AutonomySupervised AutonomyLevel = "supervised"
	// AutonomyAutonomous records checkpoints but auto-approves them.
	AutonomyAutonomous AutonomyLevel = "autonomous"
)

// ValidAutonomyLevel reports whether level is a recognized autonomy level.
func ValidAutonomyLevel(level AutonomyLevel) bool {
	return level == AutonomySupervised || level == AutonomyAutonomous
}

// Agent is the stateful record driving one campaign through its step sequence.
// It is mutated only by the orchestrator goroutine owning the campaign
// (interventions excepted); readers get deep-copied snapshots from the store.
type Agent struct {
	ID             string        `json:"job_id"`
	Sector         string        `json:"sector"`
	RecipientEmail string        `json:"recipient_email"`
	Autonomy       AutonomyLevel `json:"autonomy_level"`
	Status         Status        `json:"status"`
	CurrentStep    Step          `json:"current_step"`
	CheckpointIDs  []string      `json:"checkpoint_ids"`
	Actions        []Action      `json:"actions"`
	Error          string        `json:"error,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	cp := *a
	cp.CheckpointIDs = append([]string(nil), a.CheckpointIDs...)
	cp.Actions = append([]Action(nil), a.Actions...)
	return &cp
}

// RecentActions returns the last n actions in execution order.
func (a *Agent) RecentActions(n int) []Action {
	if n >= len(a.Actions) {
		return a.Actions
	}
	return a.Actions[len(a.Actions)-n:]
}
