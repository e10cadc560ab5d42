// Package policy implements the pure routing decisions of the delivery
// engine: which notifications reach which agent, which no-response outcomes
// deserve a retry, and when an agent may mark a task done. All functions are
// deterministic over a DeliveryContext snapshot and perform no I/O.
package policy

import "github.com/zulandar/trainorder/internal/models"

// Verdict is the outcome of evaluating one delivery decision. Rule names the
// first matching rule, for log lines and counters.
type Verdict struct {
	Deliver bool
	Rule    string
}

// Rule names reported in Verdicts.
const (
	RuleOrchestratorOnly       = "orchestrator-only"
	RuleOrchestratorUnblock    = "orchestrator-unblock"
	RuleTerminalThreadUpdate   = "terminal-thread-update"
	RuleTerminalStatusChange   = "terminal-status-change"
	RuleReviewGate             = "review-gate"
	RuleOrchestratorVisibility = "orchestrator-visibility"
	RuleOrchestratorFollowup   = "orchestrator-followup"
	RuleEchoGuard              = "echo-guard"
	RuleAssigneeUpdate         = "assignee-update"
	RuleUnrelatedRecipient     = "unrelated-recipient"
	RuleDefault                = "default"
)

// ShouldDeliver reports whether the notification in ctx should be delivered
// to its recipient agent.
func ShouldDeliver(ctx *models.DeliveryContext) bool {
	return Evaluate(ctx).Deliver
}

// Evaluate applies the delivery rules in precedence order and returns the
// verdict of the first matching rule.
func Evaluate(ctx *models.DeliveryContext) Verdict {
	n := ctx.Notification
	task := ctx.Task

	// Rule 1: a task marked orchestrator-only routes agent-targeted
	// notifications to the orchestrator and nobody else.
	if task != nil && task.HasLabel(models.LabelOrchestratorOnly) &&
		n.RecipientKind == models.ActorAgent && !ctx.RecipientIsOrchestrator() {
		return Verdict{Deliver: false, Rule: RuleOrchestratorOnly}
	}

	// Rule 2: thread updates stop once the task is done or blocked. The one
	// exception is an orchestrator message on a blocked task, so the
	// orchestrator can unblock it.
	if n.Type == models.NotificationThreadUpdate && task != nil &&
		(task.Status.Terminal() || task.Status.Paused()) {
		if task.Status.Paused() && ctx.AuthorIsOrchestrator() {
			return Verdict{Deliver: true, Rule: RuleOrchestratorUnblock}
		}
		return Verdict{Deliver: false, Rule: RuleTerminalThreadUpdate}
	}

	// Rule 3: status changes to done/blocked are suppressed so watcher
	// agents don't ack-storm the thread; changes into review reach only the
	// orchestrator or agents holding review capability.
	if n.Type == models.NotificationStatusChange && task != nil {
		if task.Status.Terminal() || task.Status.Paused() {
			return Verdict{Deliver: false, Rule: RuleTerminalStatusChange}
		}
		if task.Status == models.StatusReview {
			if ctx.RecipientIsOrchestrator() || ctx.Capabilities.Review {
				return Verdict{Deliver: true, Rule: RuleReviewGate}
			}
			return Verdict{Deliver: false, Rule: RuleReviewGate}
		}
	}

	// Rule 4: agent-authored thread updates. Without this guard agents reply
	// to each other's replies forever.
	if n.Type == models.NotificationThreadUpdate && ctx.AuthorIsAgent() {
		// Second-order echo: this thread_update was spawned by another
		// thread_update. Only an orchestrator reply addressed to an
		// assigned or reviewing recipient passes; everything else stops the
		// chain after one hop, for every recipient.
		if ctx.SourceType == models.NotificationThreadUpdate {
			if ctx.AuthorIsOrchestrator() && recipientInvolved(ctx) {
				return Verdict{Deliver: true, Rule: RuleOrchestratorFollowup}
			}
			return Verdict{Deliver: false, Rule: RuleEchoGuard}
		}

		// The orchestrator must see first-order agent updates it did not
		// author itself.
		if ctx.RecipientIsOrchestrator() && !ctx.AuthorIsOrchestrator() {
			return Verdict{Deliver: true, Rule: RuleOrchestratorVisibility}
		}

		if recipientInvolved(ctx) {
			return Verdict{Deliver: true, Rule: RuleAssigneeUpdate}
		}
		return Verdict{Deliver: false, Rule: RuleUnrelatedRecipient}
	}

	// Rule 5: everything else (assignments, mentions, response requests,
	// human-authored thread updates) always lands, even on a finished task,
	// so a user can still ask a finished agent to follow up.
	return Verdict{Deliver: true, Rule: RuleDefault}
}

// recipientInvolved reports whether the recipient is assigned to the task, or
// holds review capability while the task is in review.
func recipientInvolved(ctx *models.DeliveryContext) bool {
	if ctx.RecipientAssigned() {
		return true
	}
	return ctx.Capabilities.Review && ctx.Task != nil && ctx.Task.Status == models.StatusReview
}

// ShouldRetryOnNoResponse reports whether an empty reply to this notification
// is worth another delivery attempt. Passive agent-to-agent chatter does not
// burn retry budget.
func ShouldRetryOnNoResponse(ctx *models.DeliveryContext) bool {
	switch ctx.Notification.Type {
	case models.NotificationAssignment, models.NotificationMention, models.NotificationResponseRequest:
		return true
	case models.NotificationThreadUpdate:
		return !ctx.AuthorIsAgent()
	default:
		return false
	}
}

// CanMarkDone reports whether an agent holding the mark-done capability may
// mark a task in the given status as done. Only active tasks qualify.
func CanMarkDone(status models.TaskStatus, markDone bool) bool {
	if !markDone {
		return false
	}
	return status == models.StatusInProgress || status == models.StatusReview
}
