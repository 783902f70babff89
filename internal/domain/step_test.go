package domain

import (
	"strings"
	"testing"
)

func TestProgressMonotonicThroughSteps(t *testing.T) {
	last := -1
	for _, step := range Steps {
		got := Progress(StatusExecuting, step)
		if got <= last {
			t.Fatalf("progress at %s = %d, not above previous %d", step, got, last)
		}
		last = got
	}
	if last != 100 {
		t.Fatalf("final step progress = %d, want 100", last)
	}
}

func TestProgressTerminalStatuses(t *testing.T) {
	if got := Progress(StatusCompleted, StepGeneratingEmails); got != 100 {
		t.Fatalf("completed progress = %d, want 100", got)
	}
	for _, status := range []Status{StatusFailed, StatusStopped} {
		if got := Progress(status, StepSendingEmails); got != 0 {
			t.Fatalf("%s progress = %d, want 0", status, got)
		}
	}
}

func TestProgressWaitingApprovalFloor(t *testing.T) {
	if got := Progress(StatusWaitingApproval, StepPlanning); got != 50 {
		t.Fatalf("waiting at planning = %d, want floor 50", got)
	}
	if got := Progress(StatusWaitingApproval, StepRequestingSendApprove); got != 80 {
		t.Fatalf("waiting at send approval = %d, want step progress 80", got)
	}
}

func TestStatusMessage(t *testing.T) {
	if got := StatusMessage(StatusWaitingApproval, StepRequestingSendApprove, 3, ""); !strings.Contains(got, "3 pending") {
		t.Fatalf("waiting message = %q", got)
	}
	if got := StatusMessage(StatusExecuting, StepGatheringContext, 0, ""); got != "gathering context" {
		t.Fatalf("executing message = %q", got)
	}
	if got := StatusMessage(StatusFailed, StepSendingEmails, 0, "smtp refused"); !strings.Contains(got, "smtp refused") {
		t.Fatalf("failed message = %q", got)
	}
}
