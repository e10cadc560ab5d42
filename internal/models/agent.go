package models

import "time"

// DefaultHeartbeatInterval applies when the store reports no interval for an agent.
const DefaultHeartbeatInterval = 10 * time.Minute

// Agent is one autonomous agent known to the account, as reported by the
// store's roster listing.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	SessionKey  string `json:"session_key"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
}

// HeartbeatInterval returns the agent's heartbeat cadence, defaulting when
// the store reports none.
func (a *Agent) HeartbeatInterval() time.Duration {
	if a.HeartbeatMs <= 0 {
		return DefaultHeartbeatInterval
	}
	return time.Duration(a.HeartbeatMs) * time.Millisecond
}

// Capabilities is the set of actions an agent is permitted to take through
// the engine's tool surface.
type Capabilities struct {
	CreateTask     bool `json:"create_task"`
	ChangeStatus   bool `json:"change_status"`
	CreateDocument bool `json:"create_document"`
	Mention        bool `json:"mention"`
	Review         bool `json:"review"`
	MarkDone       bool `json:"mark_done"`
}
