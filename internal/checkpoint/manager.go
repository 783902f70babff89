// Package checkpoint owns the set of pending human-approval requests raised
// by campaign agents and resolves them on external decisions.
package checkpoint

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/revreach/internal/domain"
)

var (
	// ErrNotFound is returned for an unknown checkpoint id.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrAlreadyResolved is returned on a second resolve attempt; the first
	// resolution's fields are left unchanged.
	ErrAlreadyResolved = errors.New("checkpoint already resolved")
	// ErrInvalidDecision is returned for an unrecognized decision value.
	ErrInvalidDecision = errors.New("invalid checkpoint decision")
)

// Manager is the process-wide checkpoint registry. Resolution is
// linearizable: a resolve call is visible to the very next read, and the
// waiter channel for the checkpoint is closed under the same lock.
type Manager struct {
	mu          sync.Mutex
	checkpoints map[string]*domain.Checkpoint
	order       []string // creation order
	waiters     map[string]chan struct{}
}

// NewManager creates an empty checkpoint manager.
func NewManager() *Manager {
	return &Manager{
		checkpoints: make(map[string]*domain.Checkpoint),
		waiters:     make(map[string]chan struct{}),
	}
}

// Create allocates and stores a checkpoint. When requiresApproval is false
// the checkpoint is recorded pre-approved and never blocks a waiter.
func (m *Manager) Create(agentID string, typ domain.CheckpointType, riskLevel domain.RiskLevel, message string, data map[string]any, requiresApproval bool) *domain.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := &domain.Checkpoint{
		ID:               uuid.NewString(),
		AgentID:          agentID,
		Type:             typ,
		RiskLevel:        riskLevel,
		RequiresApproval: requiresApproval,
		Message:          message,
		Data:             data,
		CreatedAt:        time.Now().UTC(),
	}
	m.checkpoints[cp.ID] = cp
	m.order = append(m.order, cp.ID)

	done := make(chan struct{})
	m.waiters[cp.ID] = done
	if !requiresApproval {
		m.resolveLocked(cp, domain.DecisionApprove, "auto-approved", "")
	}
	return cp.Clone()
}

// Get returns a snapshot of the checkpoint, or ErrNotFound.
func (m *Manager) Get(id string) (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cp.Clone(), nil
}

// Pending returns all unresolved checkpoints in creation order, optionally
// filtered by agent id (empty agentID means all agents).
func (m *Manager) Pending(agentID string) []*domain.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Checkpoint
	for _, id := range m.order {
		cp := m.checkpoints[id]
		if cp.Resolved() {
			continue
		}
		if agentID != "" && cp.AgentID != agentID {
			continue
		}
		out = append(out, cp.Clone())
	}
	return out
}

// Resolve records the human decision on a pending checkpoint. It fails with
// ErrNotFound for unknown ids, ErrAlreadyResolved for double resolves (the
// first resolution's fields stay intact), and ErrInvalidDecision for
// unrecognized decision values. A modify decision for a checkpoint that is no
// longer pending is rejected the same way, never silently applied.
func (m *Manager) Resolve(id string, decision domain.Decision, feedback, modifiedContent string) (*domain.Checkpoint, error) {
	if !domain.ValidDecision(decision) {
		return nil, fmt.Errorf("%q: %w", decision, ErrInvalidDecision)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	if cp.Resolved() {
		return nil, ErrAlreadyResolved
	}
	m.resolveLocked(cp, decision, feedback, modifiedContent)
	return cp.Clone(), nil
}

// Done returns a channel closed when the checkpoint resolves. For unknown
// ids a closed channel is returned so waiters fail fast on lookup.
func (m *Manager) Done(id string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if done, ok := m.waiters[id]; ok {
		return done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

func (m *Manager) resolveLocked(cp *domain.Checkpoint, decision domain.Decision, feedback, modifiedContent string) {
	now := time.Now().UTC()
	cp.ResolvedAt = &now
	cp.Decision = decision
	cp.Feedback = feedback
	cp.ModifiedContent = modifiedContent
	if done, ok := m.waiters[cp.ID]; ok {
		close(done)
	}
}
