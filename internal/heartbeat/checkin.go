package heartbeat

import (
	"context"
	"fmt"
	"sort"

	"github.com/zulandar/trainorder/internal/models"
	"github.com/zulandar/trainorder/internal/prompt"
	"github.com/zulandar/trainorder/internal/store"
)

// statusRank orders task statuses by how actionable they are for a check-in.
var statusRank = map[models.TaskStatus]int{
	models.StatusBlocked:    0,
	models.StatusReview:     1,
	models.StatusInProgress: 2,
	models.StatusAssigned:   3,
	models.StatusOpen:       4,
}

// runCheckIn performs one heartbeat firing for agent: gather its tasks, pick
// a focus, send the check-in through the gateway, and post any substantive
// reply to the right task thread.
func (s *Scheduler) runCheckIn(ctx context.Context, agent models.Agent) error {
	orchestrator := agent.Role == RoleOrchestrator

	tasks, err := s.gatherTasks(ctx, agent, orchestrator)
	if err != nil {
		return err
	}

	tasks = sortTasks(tasks, orchestrator)
	var focus *models.Task
	if len(tasks) > 0 {
		focus = &tasks[0]
	}

	instruction, err := prompt.CheckIn(prompt.CheckInOpts{
		Agent:        agent,
		Tasks:        tasks,
		Focus:        focus,
		Orchestrator: orchestrator,
	})
	if err != nil {
		return err
	}

	gwReply, err := s.gateway.Send(ctx, agent.SessionKey, instruction)
	if err != nil {
		return fmt.Errorf("heartbeat: send check-in: %w", err)
	}

	reply := ParseReply(gwReply.Text)
	if reply.NoAction() {
		return nil
	}

	taskID, ok := TaskRef(reply.Text)
	if !ok {
		if focus == nil {
			// Substantive reply but nothing to attach it to; drop it.
			fmt.Fprintf(s.out, "Heartbeat reply from %s had no task target, dropped\n", agent.ID)
			return nil
		}
		taskID = focus.ID
	}

	if err := s.store.PostThreadMessage(ctx, store.PostOpts{
		TaskID:  taskID,
		AgentID: agent.ID,
		Content: reply.Text,
	}); err != nil {
		return fmt.Errorf("heartbeat: post reply: %w", err)
	}
	return nil
}

// gatherTasks collects the agent's assigned tasks, plus the account's tracked
// tasks for an orchestrator, filtered to non-terminal statuses.
func (s *Scheduler) gatherTasks(ctx context.Context, agent models.Agent, orchestrator bool) ([]models.Task, error) {
	assigned, err := s.store.AssignedTasks(ctx, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("heartbeat: assigned tasks: %w", err)
	}

	tasks := assigned
	if orchestrator {
		tracked, err := s.store.TrackedTasks(ctx)
		if err != nil {
			return nil, fmt.Errorf("heartbeat: tracked tasks: %w", err)
		}
		seen := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			seen[t.ID] = true
		}
		for _, t := range tracked {
			if !seen[t.ID] {
				tasks = append(tasks, t)
			}
		}
	}

	actionable := tasks[:0]
	for _, t := range tasks {
		if !t.Status.Terminal() {
			actionable = append(actionable, t)
		}
	}
	return actionable, nil
}

// sortTasks orders tasks by status rank, then by staleness for an
// orchestrator (oldest update first, to follow up on what languishes) or by
// recency for a worker (newest update first, to stay on the active thread).
func sortTasks(tasks []models.Task, orchestrator bool) []models.Task {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := rankOf(tasks[i].Status), rankOf(tasks[j].Status)
		if ri != rj {
			return ri < rj
		}
		if orchestrator {
			return tasks[i].UpdatedAt.Before(tasks[j].UpdatedAt)
		}
		return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
	})
	return tasks
}

func rankOf(s models.TaskStatus) int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return len(statusRank)
}
