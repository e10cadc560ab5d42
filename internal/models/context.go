package models

// DeliveryContext is the read-only snapshot assembled for one delivery
// attempt: the notification plus everything needed to decide, render, and
// execute it. It is rebuilt fresh on every retry since task and thread state
// may have changed in between.
type DeliveryContext struct {
	Notification Notification `json:"notification"`
	Agent        Agent        `json:"agent"`
	Task         *Task        `json:"task,omitempty"`
	Message      *Message     `json:"message,omitempty"`
	Thread       []Message    `json:"thread,omitempty"`

	// SourceType is the type of the notification that caused this one to be
	// generated, used to detect echo chains.
	SourceType NotificationType `json:"source_type,omitempty"`

	// OrchestratorID is the account's orchestrator agent, empty if none.
	OrchestratorID string       `json:"orchestrator_id,omitempty"`
	Capabilities   Capabilities `json:"capabilities"`

	// Auxiliary documents, empty when the store has none.
	RepoContext  string `json:"repo_context,omitempty"`
	Briefing     string `json:"briefing,omitempty"`
	TaskOverview string `json:"task_overview,omitempty"`
}

// RecipientIsOrchestrator reports whether the resolved agent is the account
// orchestrator.
func (c *DeliveryContext) RecipientIsOrchestrator() bool {
	return c.OrchestratorID != "" && c.Agent.ID == c.OrchestratorID
}

// AuthorIsOrchestrator reports whether the triggering message was authored by
// the account orchestrator.
func (c *DeliveryContext) AuthorIsOrchestrator() bool {
	return c.Message != nil && c.OrchestratorID != "" && c.Message.AuthorID == c.OrchestratorID
}

// AuthorIsAgent reports whether the triggering message was authored by an
// agent rather than a human.
func (c *DeliveryContext) AuthorIsAgent() bool {
	return c.Message != nil && c.Message.AuthorKind == ActorAgent
}

// RecipientAssigned reports whether the resolved agent is assigned to the
// context's task.
func (c *DeliveryContext) RecipientAssigned() bool {
	return c.Task != nil && c.Task.Assigned(c.Agent.ID)
}
