// Package roster maintains the in-memory agent roster: the session registry
// mapping agents to their gateway session keys, and the periodic sync that
// reconciles it against the store.
package roster

import (
	"sync"
	"time"

	"github.com/zulandar/trainorder/internal/models"
)

// SessionEntry binds an agent identity to its live gateway session.
type SessionEntry struct {
	Agent         models.Agent
	LastMessageAt time.Time
}

// Registry is the in-memory session registry, indexed both by agent id and by
// session key. At most one live entry exists per agent; re-registering an
// agent replaces its entry. Safe for concurrent use; every mutation is a
// single locked map operation.
type Registry struct {
	mu        sync.RWMutex
	byAgent   map[string]*SessionEntry
	bySession map[string]string // session key -> agent id
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byAgent:   make(map[string]*SessionEntry),
		bySession: make(map[string]string),
	}
}

// Register adds or replaces the entry for agent. Replacing never duplicates:
// the prior session key index is dropped first.
func (r *Registry) Register(agent models.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byAgent[agent.ID]; ok {
		delete(r.bySession, prev.Agent.SessionKey)
	}
	r.byAgent[agent.ID] = &SessionEntry{Agent: agent}
	r.bySession[agent.SessionKey] = agent.ID
}

// Remove deletes the entry for agentID. Removing an unknown agent is a no-op.
func (r *Registry) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byAgent[agentID]; ok {
		delete(r.bySession, prev.Agent.SessionKey)
		delete(r.byAgent, agentID)
	}
}

// Get returns the agent registered under agentID.
func (r *Registry) Get(agentID string) (models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byAgent[agentID]
	if !ok {
		return models.Agent{}, false
	}
	return e.Agent, true
}

// BySession returns the agent owning the given session key.
func (r *Registry) BySession(sessionKey string) (models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySession[sessionKey]
	if !ok {
		return models.Agent{}, false
	}
	return r.byAgent[id].Agent, true
}

// TouchMessage records that a message was sent to agentID's session at t.
func (r *Registry) TouchMessage(agentID string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byAgent[agentID]; ok {
		e.LastMessageAt = t
	}
}

// List returns a snapshot of all registered agents.
func (r *Registry) List() []models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]models.Agent, 0, len(r.byAgent))
	for _, e := range r.byAgent {
		agents = append(agents, e.Agent)
	}
	return agents
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAgent)
}
