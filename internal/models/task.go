package models

import "time"

// TaskStatus is the lifecycle state of a task in the external store.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusAssigned   TaskStatus = "assigned"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
)

// LabelOrchestratorOnly marks a task whose agent-targeted notifications are
// routed only to the account orchestrator.
const LabelOrchestratorOnly = "orchestrator-only"

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool { return s == StatusDone }

// Paused reports whether the status is the paused state.
func (s TaskStatus) Paused() bool { return s == StatusBlocked }

// NextStatus returns the status one step forward in the normal lifecycle.
// It returns false for statuses with no single forward step.
func NextStatus(s TaskStatus) (TaskStatus, bool) {
	switch s {
	case StatusOpen:
		return StatusAssigned, true
	case StatusAssigned:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusReview, true
	case StatusReview:
		return StatusDone, true
	default:
		return s, false
	}
}

// Task is the store's view of a work item, as embedded in a DeliveryContext.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	Assignees []string   `json:"assignees,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HasLabel reports whether the task carries the given label.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Assigned reports whether agentID is one of the task's assignees.
func (t *Task) Assigned(agentID string) bool {
	for _, a := range t.Assignees {
		if a == agentID {
			return true
		}
	}
	return false
}
