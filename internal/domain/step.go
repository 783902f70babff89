package domain

import (
	"fmt"
	"strings"
)

// Step is a named phase of campaign execution.
type Step string

const (
	StepInitializing          Step = "initializing"
	StepPlanning              Step = "planning"
	StepGatheringContext      Step = "gathering_context"
	StepGeneratingEmails      Step = "generating_emails"
	StepRequestingSendApprove Step = "requesting_send_approval"
	StepSendingEmails         Step = "sending_emails"
	StepCompleted             Step = "completed"
)

// Steps lists all execution phases in order.
var Steps = []Step{
	StepInitializing,
	StepPlanning,
	StepGatheringContext,
	StepGeneratingEmails,
	StepRequestingSendApprove,
	StepSendingEmails,
	StepCompleted,
}

// stepProgress maps each step to the progress percentage reported externally.
var stepProgress = map[Step]int{
	StepInitializing:          5,
	StepPlanning:              20,
	StepGatheringContext:      35,
	StepGeneratingEmails:      60,
	StepRequestingSendApprove: 80,
	StepSendingEmails:         95,
	StepCompleted:             100,
}

// approvalWaitFloor is the minimum progress reported while waiting for a
// human decision, so early-phase waits still read as mid-campaign.
const approvalWaitFloor = 50

// Progress derives the reported progress percentage from status and step.
// Pure; used only for external reporting, never by the state machine.
func Progress(status Status, step Step) int {
	switch status {
	case StatusCompleted:
		return 100
	case StatusFailed, StatusStopped:
		return 0
	case StatusWaitingApproval:
		if p := stepProgress[step]; p > approvalWaitFloor {
			return p
		}
		return approvalWaitFloor
	default:
		return stepProgress[step]
	}
}

// StatusMessage derives the human-readable agent message from status, step,
// pending-checkpoint count and the recorded error. Pure.
func StatusMessage(status Status, step Step, pending int, errMsg string) string {
	switch status {
	case StatusPlanning:
		return "Analyzing sector and planning campaign strategy"
	case StatusWaitingApproval:
		return fmt.Sprintf("Waiting for human approval (%d pending decisions)", pending)
	case StatusExecuting:
		return strings.ReplaceAll(string(step), "_", " ")
	case StatusPaused:
		return "Agent paused - can be resumed"
	case StatusStopped:
		return "Campaign stopped by operator"
	case StatusCompleted:
		return "Campaign completed successfully"
	case StatusFailed:
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return "Campaign failed: " + errMsg
	default:
		return "Agent active"
	}
}
