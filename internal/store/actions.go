package store

import (
	"context"
	"fmt"

	"github.com/zulandar/trainorder/internal/models"
)

// PendingNotifications fetches a bounded page of undelivered notifications.
func (c *Client) PendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("store: limit must be positive")
	}

	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, "notifications.pending", map[string]any{"limit": limit}, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// DeliveryContext fetches the full resolved context for one notification.
// Returns ErrNotFound when the notification's task or agent no longer exists.
func (c *Client) DeliveryContext(ctx context.Context, notificationID string) (*models.DeliveryContext, error) {
	if notificationID == "" {
		return nil, fmt.Errorf("store: notificationID is required")
	}

	var dctx models.DeliveryContext
	if err := c.do(ctx, "notifications.context", map[string]any{"id": notificationID}, &dctx); err != nil {
		return nil, err
	}
	return &dctx, nil
}

// MarkRead marks a notification read.
func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	return c.do(ctx, "notifications.mark_read", map[string]any{"id": notificationID}, nil)
}

// MarkDelivered marks a notification's terminal delivered outcome. This is
// the only action that retires a notification.
func (c *Client) MarkDelivered(ctx context.Context, notificationID string) error {
	return c.do(ctx, "notifications.mark_delivered", map[string]any{"id": notificationID}, nil)
}

// PostOpts holds parameters for posting a thread message on behalf of an agent.
type PostOpts struct {
	TaskID  string
	AgentID string
	Content string
	// SourceMessageID is the triggering message's identity, used by the
	// store as a natural de-duplication anchor so reposting after a failed
	// delivered-mark is safe.
	SourceMessageID string
}

// PostThreadMessage posts a message to a task thread on behalf of an agent.
func (c *Client) PostThreadMessage(ctx context.Context, opts PostOpts) error {
	if opts.TaskID == "" {
		return fmt.Errorf("store: taskID is required")
	}
	if opts.AgentID == "" {
		return fmt.Errorf("store: agentID is required")
	}
	if opts.Content == "" {
		return fmt.Errorf("store: content is required")
	}

	return c.do(ctx, "threads.post", map[string]any{
		"task_id":           opts.TaskID,
		"agent_id":          opts.AgentID,
		"content":           opts.Content,
		"source_message_id": opts.SourceMessageID,
	}, nil)
}

// AdvanceTaskStatus advances a task one status step with an expected-prior
// guard; the store rejects the change if the task moved in the meantime.
func (c *Client) AdvanceTaskStatus(ctx context.Context, taskID string, expected, next models.TaskStatus) error {
	if taskID == "" {
		return fmt.Errorf("store: taskID is required")
	}

	return c.do(ctx, "tasks.advance_status", map[string]any{
		"task_id":  taskID,
		"expected": expected,
		"next":     next,
	}, nil)
}

// SetTaskStatus sets a task's status without a prior-status guard, on behalf
// of an agent tool call.
func (c *Client) SetTaskStatus(ctx context.Context, taskID string, status models.TaskStatus, agentID string) error {
	if taskID == "" {
		return fmt.Errorf("store: taskID is required")
	}

	return c.do(ctx, "tasks.set_status", map[string]any{
		"task_id":  taskID,
		"status":   status,
		"agent_id": agentID,
	}, nil)
}

// CreateTaskOpts holds parameters for an agent-requested task creation.
type CreateTaskOpts struct {
	Title       string
	Description string
	Assignee    string
	CreatedBy   string
}

// CreateTask creates a new task and returns its id.
func (c *Client) CreateTask(ctx context.Context, opts CreateTaskOpts) (string, error) {
	if opts.Title == "" {
		return "", fmt.Errorf("store: title is required")
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "tasks.create", map[string]any{
		"title":       opts.Title,
		"description": opts.Description,
		"assignee":    opts.Assignee,
		"created_by":  opts.CreatedBy,
	}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateDocumentOpts holds parameters for an agent-requested document creation.
type CreateDocumentOpts struct {
	Title     string
	Content   string
	TaskID    string
	CreatedBy string
}

// CreateDocument creates a document and returns its id.
func (c *Client) CreateDocument(ctx context.Context, opts CreateDocumentOpts) (string, error) {
	if opts.Title == "" {
		return "", fmt.Errorf("store: title is required")
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "documents.create", map[string]any{
		"title":      opts.Title,
		"content":    opts.Content,
		"task_id":    opts.TaskID,
		"created_by": opts.CreatedBy,
	}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ListAgents lists the account's agents with session keys and heartbeat
// intervals.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var out struct {
		Agents []models.Agent `json:"agents"`
	}
	if err := c.do(ctx, "agents.list", nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// AssignedTasks lists the tasks assigned to one agent.
func (c *Client) AssignedTasks(ctx context.Context, agentID string) ([]models.Task, error) {
	if agentID == "" {
		return nil, fmt.Errorf("store: agentID is required")
	}

	var out struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := c.do(ctx, "tasks.assigned", map[string]any{"agent_id": agentID}, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// TrackedTasks lists the account's tracked non-terminal tasks, used by the
// orchestrator's heartbeat.
func (c *Client) TrackedTasks(ctx context.Context) ([]models.Task, error) {
	var out struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := c.do(ctx, "tasks.tracked", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// AcknowledgeShutdown tells the store this runtime is exiting. The process
// does not proceed to exit until this call returns.
func (c *Client) AcknowledgeShutdown(ctx context.Context) error {
	return c.do(ctx, "runtime.shutdown", nil, nil)
}
