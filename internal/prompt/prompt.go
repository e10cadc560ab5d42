// Package prompt assembles the deterministic instructions sent to agent
// sessions. The wording is a fixed structure over the delivery context;
// capability gating decides which action instructions appear.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/zulandar/trainorder/internal/models"
	"github.com/zulandar/trainorder/internal/policy"
)

// NoActionSentinel is the exact reply an agent returns from a check-in when
// it has nothing to do. Replies mixing narrative with the sentinel are
// normalized to a no-op at the gateway boundary.
const NoActionSentinel = "NO_ACTION"

// maxThreadMessages bounds how much thread history an instruction carries.
const maxThreadMessages = 10

// instructionTemplate renders the per-notification instruction.
const instructionTemplate = `# {{ .Heading }}

Task: {{ .TaskTitle }} ({{ .TaskID }}, status: {{ .TaskStatus }})
{{ if .Coordination }}
You share this assignment with {{ .CoAssignees }}. Before doing substantive
work, post a short scoping reply stating which part you will take.
{{ end }}{{ if .AuthorLine }}
{{ .AuthorLine }}:
{{ .MessageContent }}
{{ end }}{{ if .Thread }}
## Recent thread
{{ range .Thread }}- [{{ .Author }}] {{ .Content }}
{{ end }}{{ end }}{{ if .Actions }}
## Available actions

Reply with tool calls for any of:
{{ range .Actions }}- {{ . }}
{{ end }}{{ end }}{{ if .RepoContext }}
## Repository context
{{ .RepoContext }}
{{ end }}{{ if .Briefing }}
## Briefing
{{ .Briefing }}
{{ end }}{{ if .TaskOverview }}
## Task overview
{{ .TaskOverview }}
{{ end }}
Respond with your update for the task thread.`

// checkInTemplate renders the periodic heartbeat check-in.
const checkInTemplate = `# Periodic check-in

You are {{ .AgentName }}. This is a scheduled check-in, not a reply to a message.
{{ if .Tasks }}
## Your current tasks
{{ range .Tasks }}- {{ .ID }} — {{ .Title }} ({{ .Status }})
{{ end }}{{ if .FocusID }}
Focus task: {{ .FocusID }}. Address a task explicitly by including its id
(e.g. {{ .FocusID }}) in your reply; otherwise your reply goes to the focus task.
{{ end }}{{ else }}
You have no tasks assigned. Scan for unassigned work you could pick up.
{{ end }}{{ if .Orchestrator }}
You are the account orchestrator: also follow up on tracked tasks that look
stale or blocked.
{{ end }}
If there is nothing to do, reply with exactly {{ .Sentinel }} and nothing else.`

var (
	instructionTmpl = template.Must(template.New("instruction").Parse(instructionTemplate))
	checkInTmpl     = template.Must(template.New("checkin").Parse(checkInTemplate))
)

// threadLine is one rendered thread entry.
type threadLine struct {
	Author  string
	Content string
}

// instructionData is the render input for the notification instruction.
type instructionData struct {
	Heading        string
	TaskID         string
	TaskTitle      string
	TaskStatus     models.TaskStatus
	Coordination   bool
	CoAssignees    string
	AuthorLine     string
	MessageContent string
	Thread         []threadLine
	Actions        []string
	RepoContext    string
	Briefing       string
	TaskOverview   string
}

// Instruction renders the instruction for one notification delivery.
func Instruction(ctx *models.DeliveryContext) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("prompt: context is required")
	}
	if ctx.Task == nil {
		return "", fmt.Errorf("prompt: context has no task")
	}

	data := instructionData{
		Heading:      heading(ctx.Notification.Type),
		TaskID:       ctx.Task.ID,
		TaskTitle:    ctx.Task.Title,
		TaskStatus:   ctx.Task.Status,
		Actions:      actionList(ctx),
		RepoContext:  ctx.RepoContext,
		Briefing:     ctx.Briefing,
		TaskOverview: ctx.TaskOverview,
	}

	// Multi-assignee assignments carry the coordination gate: a scoping
	// reply is required before substantive work.
	if ctx.Notification.Type == models.NotificationAssignment && len(ctx.Task.Assignees) > 1 {
		var others []string
		for _, a := range ctx.Task.Assignees {
			if a != ctx.Agent.ID {
				others = append(others, a)
			}
		}
		data.Coordination = true
		data.CoAssignees = strings.Join(others, ", ")
	}

	if ctx.Message != nil {
		data.AuthorLine = fmt.Sprintf("Message from %s (%s)", ctx.Message.AuthorID, ctx.Message.AuthorKind)
		data.MessageContent = ctx.Message.Content
	}

	thread := ctx.Thread
	if len(thread) > maxThreadMessages {
		thread = thread[len(thread)-maxThreadMessages:]
	}
	for _, m := range thread {
		data.Thread = append(data.Thread, threadLine{Author: m.AuthorID, Content: m.Content})
	}

	return render(instructionTmpl, data)
}

// CheckInOpts holds the render input for a heartbeat check-in.
type CheckInOpts struct {
	Agent        models.Agent
	Tasks        []models.Task
	Focus        *models.Task
	Orchestrator bool
}

// CheckIn renders the fixed-structure heartbeat check-in message.
func CheckIn(opts CheckInOpts) (string, error) {
	if opts.Agent.ID == "" {
		return "", fmt.Errorf("prompt: agent is required")
	}

	name := opts.Agent.Name
	if name == "" {
		name = opts.Agent.ID
	}

	data := struct {
		AgentName    string
		Tasks        []models.Task
		FocusID      string
		Orchestrator bool
		Sentinel     string
	}{
		AgentName:    name,
		Tasks:        opts.Tasks,
		Orchestrator: opts.Orchestrator,
		Sentinel:     NoActionSentinel,
	}
	if opts.Focus != nil {
		data.FocusID = opts.Focus.ID
	}

	return render(checkInTmpl, data)
}

// heading maps a notification type to its instruction heading.
func heading(t models.NotificationType) string {
	switch t {
	case models.NotificationAssignment:
		return "You have been assigned a task"
	case models.NotificationMention:
		return "You were mentioned"
	case models.NotificationResponseRequest:
		return "A response was requested from you"
	case models.NotificationThreadUpdate:
		return "Task thread update"
	case models.NotificationStatusChange:
		return "Task status changed"
	default:
		return "Notification"
	}
}

// actionList returns the tool instructions the agent's capabilities allow.
func actionList(ctx *models.DeliveryContext) []string {
	caps := ctx.Capabilities
	var actions []string

	if caps.ChangeStatus {
		line := `set_status {"task_id": "...", "status": "..."}`
		if policy.CanMarkDone(ctx.Task.Status, caps.MarkDone) {
			line += ` (you may set "done")`
		}
		actions = append(actions, line)
	}
	if caps.CreateTask {
		actions = append(actions, `create_task {"title": "...", "description": "...", "assignee": "..."}`)
	}
	if caps.CreateDocument {
		actions = append(actions, `create_document {"title": "...", "content": "...", "task_id": "..."}`)
	}
	if caps.Mention {
		actions = append(actions, `mention {"task_id": "...", "agent_id": "...", "content": "..."}`)
	}
	return actions
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
