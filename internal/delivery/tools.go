package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zulandar/trainorder/internal/models"
	"github.com/zulandar/trainorder/internal/policy"
	"github.com/zulandar/trainorder/internal/store"
)

// Tool names an agent may request.
const (
	ToolSetStatus      = "set_status"
	ToolCreateTask     = "create_task"
	ToolCreateDocument = "create_document"
	ToolMention        = "mention"
)

// executeToolCalls runs each requested action against the store
// independently. A failing call never aborts the batch: its error is
// returned to the agent as a structured failure so the agent can report
// being blocked.
func (l *Loop) executeToolCalls(ctx context.Context, dctx *models.DeliveryContext, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		l.Counters.ToolCalls.Add(1)

		output, err := l.executeTool(ctx, dctx, call)
		if err != nil {
			l.Counters.ToolFailures.Add(1)
			results = append(results, models.ToolResult{ID: call.ID, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, models.ToolResult{ID: call.ID, Success: true, Output: output})
	}
	return results
}

// executeTool dispatches one tool call after the capability gate.
func (l *Loop) executeTool(ctx context.Context, dctx *models.DeliveryContext, call models.ToolCall) (string, error) {
	switch call.Name {
	case ToolSetStatus:
		return l.toolSetStatus(ctx, dctx, call.Args)
	case ToolCreateTask:
		return l.toolCreateTask(ctx, dctx, call.Args)
	case ToolCreateDocument:
		return l.toolCreateDocument(ctx, dctx, call.Args)
	case ToolMention:
		return l.toolMention(ctx, dctx, call.Args)
	default:
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (l *Loop) toolSetStatus(ctx context.Context, dctx *models.DeliveryContext, raw json.RawMessage) (string, error) {
	var args struct {
		TaskID string            `json:"task_id"`
		Status models.TaskStatus `json:"status"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("set_status: invalid args: %w", err)
	}
	if !dctx.Capabilities.ChangeStatus {
		return "", fmt.Errorf("set_status: not permitted for this agent")
	}
	if !validStatus(args.Status) {
		return "", fmt.Errorf("set_status: unknown status %q", args.Status)
	}
	if args.Status == models.StatusDone && !policy.CanMarkDone(dctx.Task.Status, dctx.Capabilities.MarkDone) {
		return "", fmt.Errorf("set_status: marking done is not permitted from status %q", dctx.Task.Status)
	}
	if args.TaskID == "" {
		args.TaskID = dctx.Task.ID
	}

	if err := l.store.SetTaskStatus(ctx, args.TaskID, args.Status, dctx.Agent.ID); err != nil {
		return "", fmt.Errorf("set_status: %w", err)
	}
	return fmt.Sprintf("task %s set to %s", args.TaskID, args.Status), nil
}

func (l *Loop) toolCreateTask(ctx context.Context, dctx *models.DeliveryContext, raw json.RawMessage) (string, error) {
	var args struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Assignee    string `json:"assignee"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("create_task: invalid args: %w", err)
	}
	if !dctx.Capabilities.CreateTask {
		return "", fmt.Errorf("create_task: not permitted for this agent")
	}
	if args.Title == "" {
		return "", fmt.Errorf("create_task: title is required")
	}

	id, err := l.store.CreateTask(ctx, store.CreateTaskOpts{
		Title:       args.Title,
		Description: args.Description,
		Assignee:    args.Assignee,
		CreatedBy:   dctx.Agent.ID,
	})
	if err != nil {
		return "", fmt.Errorf("create_task: %w", err)
	}
	return fmt.Sprintf("created task %s", id), nil
}

func (l *Loop) toolCreateDocument(ctx context.Context, dctx *models.DeliveryContext, raw json.RawMessage) (string, error) {
	var args struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		TaskID  string `json:"task_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("create_document: invalid args: %w", err)
	}
	if !dctx.Capabilities.CreateDocument {
		return "", fmt.Errorf("create_document: not permitted for this agent")
	}
	if args.Title == "" {
		return "", fmt.Errorf("create_document: title is required")
	}

	id, err := l.store.CreateDocument(ctx, store.CreateDocumentOpts{
		Title:     args.Title,
		Content:   args.Content,
		TaskID:    args.TaskID,
		CreatedBy: dctx.Agent.ID,
	})
	if err != nil {
		return "", fmt.Errorf("create_document: %w", err)
	}
	return fmt.Sprintf("created document %s", id), nil
}

func (l *Loop) toolMention(ctx context.Context, dctx *models.DeliveryContext, raw json.RawMessage) (string, error) {
	var args struct {
		TaskID  string `json:"task_id"`
		AgentID string `json:"agent_id"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("mention: invalid args: %w", err)
	}
	if !dctx.Capabilities.Mention {
		return "", fmt.Errorf("mention: not permitted for this agent")
	}
	if args.AgentID == "" {
		return "", fmt.Errorf("mention: agent_id is required")
	}
	if args.Content == "" {
		return "", fmt.Errorf("mention: content is required")
	}
	if args.TaskID == "" {
		args.TaskID = dctx.Task.ID
	}

	if err := l.store.PostThreadMessage(ctx, store.PostOpts{
		TaskID:  args.TaskID,
		AgentID: dctx.Agent.ID,
		Content: fmt.Sprintf("@%s %s", args.AgentID, args.Content),
	}); err != nil {
		return "", fmt.Errorf("mention: %w", err)
	}
	return fmt.Sprintf("mentioned %s on task %s", args.AgentID, args.TaskID), nil
}

// validStatus reports whether s is a status the store knows.
func validStatus(s models.TaskStatus) bool {
	switch s {
	case models.StatusOpen, models.StatusAssigned, models.StatusInProgress,
		models.StatusReview, models.StatusDone, models.StatusBlocked:
		return true
	}
	return false
}
