package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	errStopped          = errors.New("campaign stopped by operator")
	errEmergencyStopped = errors.New("campaign emergency stopped")
	errPlanRejected     = errors.New("campaign plan rejected")
)

type stopKind int

const (
	stopNone stopKind = iota
	stopGraceful
	stopEmergency
)

// Runner is the control handle for one campaign goroutine. Pause blocks the
// loop at the next unit-of-work boundary; Stop and EmergencyStop cancel the
// campaign context so blocked collaborator calls and approval waits return.
type Runner struct {
	agentID string
	cancel  context.CancelFunc

	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}
	stop     stopKind
}

func newRunner(agentID string, cancel context.CancelFunc) *Runner {
	resumed := make(chan struct{})
	close(resumed)
	return &Runner{agentID: agentID, cancel: cancel, resumeCh: resumed}
}

func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		r.paused = true
		r.resumeCh = make(chan struct{})
	}
}

func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		r.paused = false
		close(r.resumeCh)
	}
}

func (r *Runner) Stop() {
	r.halt(stopGraceful)
}

func (r *Runner) EmergencyStop() {
	r.halt(stopEmergency)
}

func (r *Runner) halt(kind stopKind) {
	r.mu.Lock()
	if r.stop == stopNone {
		r.stop = kind
	}
	r.mu.Unlock()
	r.cancel()
}

// gate blocks while the runner is paused and reports a halt error once the
// campaign has been stopped or its context cancelled. The campaign loop calls
// it before every unit of work, so in-flight collaborator calls finish but no
// new work starts after an intervention.
func (r *Runner) gate(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return r.haltErr(ctx)
		}
		r.mu.Lock()
		if r.stop != stopNone {
			kind := r.stop
			r.mu.Unlock()
			return haltError(kind)
		}
		if !r.paused {
			r.mu.Unlock()
			return nil
		}
		resume := r.resumeCh
		r.mu.Unlock()

		select {
		case <-resume:
		case <-ctx.Done():
		}
	}
}

// haltErr maps a cancelled context to the intervention that caused it, or to
// a plain cancellation error for shutdown.
func (r *Runner) haltErr(ctx context.Context) error {
	r.mu.Lock()
	kind := r.stop
	r.mu.Unlock()
	if kind != stopNone {
		return haltError(kind)
	}
	return fmt.Errorf("campaign cancelled: %w", ctx.Err())
}

func haltError(kind stopKind) error {
	if kind == stopEmergency {
		return errEmergencyStopped
	}
	return errStopped
}
