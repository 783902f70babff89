// Package state owns the authoritative in-memory mapping of campaign id to
// agent record. Mutations are atomic with respect to readers: every read
// returns a deep-copied snapshot, never a half-updated agent.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/revreach/internal/domain"
)

// ErrNotFound is returned for an unknown agent id.
var ErrNotFound = errors.New("agent not found")

// Store is the process-wide agent registry. Agents are never removed within
// the process lifetime.
type Store struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent
	order  []string // creation order
}

// NewStore creates an empty agent store.
func NewStore() *Store {
	return &Store{agents: make(map[string]*domain.Agent)}
}

// Create allocates a new agent in status planning with an empty action and
// checkpoint log.
func (s *Store) Create(sector, recipientEmail string, autonomy domain.AutonomyLevel) *domain.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	agent := &domain.Agent{
		ID:             uuid.NewString(),
		Sector:         sector,
		RecipientEmail: recipientEmail,
		Autonomy:       autonomy,
		Status:         domain.StatusPlanning,
		CurrentStep:    domain.StepInitializing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.agents[agent.ID] = agent
	s.order = append(s.order, agent.ID)
	return agent.Clone()
}

// Get returns a snapshot of the agent, or ErrNotFound.
func (s *Store) Get(id string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return agent.Clone(), nil
}

// ListActive returns snapshots of all non-terminal agents in creation order.
func (s *Store) ListActive() []*domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Agent
	for _, id := range s.order {
		if agent := s.agents[id]; !agent.Status.Terminal() {
			out = append(out, agent.Clone())
		}
	}
	return out
}

// List returns snapshots of all agents in creation order.
func (s *Store) List() []*domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Agent, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.agents[id].Clone())
	}
	return out
}

// Count returns the total number of agents ever created.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// SetStatus updates the agent status. Terminal agents are never transitioned
// further.
func (s *Store) SetStatus(id string, status domain.Status) {
	s.mutate(id, func(a *domain.Agent) {
		if !a.Status.Terminal() {
			a.Status = status
		}
	})
}

// SetStep updates the agent's current execution step.
func (s *Store) SetStep(id string, step domain.Step) {
	s.mutate(id, func(a *domain.Agent) {
		a.CurrentStep = step
	})
}

// SetError records the failure detail on the agent.
func (s *Store) SetError(id, errMsg string) {
	s.mutate(id, func(a *domain.Agent) {
		a.Error = errMsg
	})
}

// AppendAction appends a started action to the agent's log and returns its id.
func (s *Store) AppendAction(id string, typ domain.ActionType, target string) string {
	actionID := uuid.NewString()
	s.mutate(id, func(a *domain.Agent) {
		a.Actions = append(a.Actions, domain.Action{
			ID:        actionID,
			Type:      typ,
			Target:    target,
			Status:    domain.ActionStarted,
			StartedAt: time.Now().UTC(),
		})
	})
	return actionID
}

// FinishAction records the outcome of a previously appended action.
func (s *Store) FinishAction(id, actionID string, status domain.ActionStatus, errMsg string) {
	s.mutate(id, func(a *domain.Agent) {
		for i := range a.Actions {
			if a.Actions[i].ID == actionID {
				now := time.Now().UTC()
				a.Actions[i].Status = status
				a.Actions[i].CompletedAt = &now
				a.Actions[i].Error = errMsg
				return
			}
		}
	})
}

// AppendCheckpoint records a raised checkpoint id on the agent.
func (s *Store) AppendCheckpoint(id, checkpointID string) {
	s.mutate(id, func(a *domain.Agent) {
		a.CheckpointIDs = append(a.CheckpointIDs, checkpointID)
	})
}

func (s *Store) mutate(id string, fn func(*domain.Agent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[id]
	if !ok {
		return
	}
	fn(agent)
	agent.UpdatedAt = time.Now().UTC()
}
