// Package delivery implements the notification delivery loop: it polls the
// store for undelivered notifications, applies the routing policy, drives the
// gateway conversation including tool calls, and marks every notification's
// terminal outcome exactly once.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zulandar/trainorder/internal/config"
	"github.com/zulandar/trainorder/internal/gateway"
	"github.com/zulandar/trainorder/internal/models"
	"github.com/zulandar/trainorder/internal/policy"
	"github.com/zulandar/trainorder/internal/prompt"
	"github.com/zulandar/trainorder/internal/retry"
	"github.com/zulandar/trainorder/internal/roster"
	"github.com/zulandar/trainorder/internal/store"
	"github.com/zulandar/trainorder/internal/telegraph"
)

// Store is the slice of the external store API the loop consumes.
type Store interface {
	PendingNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	DeliveryContext(ctx context.Context, notificationID string) (*models.DeliveryContext, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkDelivered(ctx context.Context, notificationID string) error
	PostThreadMessage(ctx context.Context, opts store.PostOpts) error
	AdvanceTaskStatus(ctx context.Context, taskID string, expected, next models.TaskStatus) error
	SetTaskStatus(ctx context.Context, taskID string, status models.TaskStatus, agentID string) error
	CreateTask(ctx context.Context, opts store.CreateTaskOpts) (string, error)
	CreateDocument(ctx context.Context, opts store.CreateDocumentOpts) (string, error)
}

// Gateway is the slice of the agent-execution gateway API the loop consumes.
type Gateway interface {
	Send(ctx context.Context, sessionKey, instruction string) (*gateway.Reply, error)
	SubmitToolResults(ctx context.Context, sessionKey, requestID string, results []models.ToolResult) (string, error)
}

// Options holds the dependencies and tuning for a Loop.
type Options struct {
	Store    Store
	Gateway  Gateway
	Registry *roster.Registry
	Retries  *retry.Tracker
	Alerts   *telegraph.Multi
	Poll     config.PollConfig
	Fallback config.FallbackConfig
	Out      io.Writer
}

// Loop is the delivery poller. It is self-scheduling: the next cycle is armed
// only after the previous one completes, so cycles never overlap.
type Loop struct {
	store    Store
	gateway  Gateway
	registry *roster.Registry
	retries  *retry.Tracker
	alerts   *telegraph.Multi
	poll     config.PollConfig
	fallback config.FallbackConfig
	out      io.Writer

	// Counters is the metrics surface read by the dashboard.
	Counters Counters
}

// NewLoop creates a delivery Loop.
func NewLoop(opts Options) (*Loop, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("delivery: store is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("delivery: gateway is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("delivery: registry is required")
	}
	if opts.Retries == nil {
		return nil, fmt.Errorf("delivery: retry tracker is required")
	}
	if opts.Poll.Interval <= 0 {
		opts.Poll.Interval = config.DefaultPollInterval
	}
	if opts.Poll.BatchSize <= 0 {
		opts.Poll.BatchSize = config.DefaultBatchSize
	}
	if opts.Poll.BackoffBase <= 0 {
		opts.Poll.BackoffBase = config.DefaultBackoffBase
	}
	if opts.Poll.BackoffMax <= 0 {
		opts.Poll.BackoffMax = config.DefaultBackoffMax
	}
	if opts.Alerts == nil {
		opts.Alerts = telegraph.NewMulti()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	return &Loop{
		store:    opts.Store,
		gateway:  opts.Gateway,
		registry: opts.Registry,
		retries:  opts.Retries,
		alerts:   opts.Alerts,
		poll:     opts.Poll,
		fallback: opts.Fallback,
		out:      opts.Out,
	}, nil
}

// Run polls until ctx is cancelled. A failed fetch backs the next poll off
// exponentially, capped at the configured maximum; the failure count resets
// on the next successful fetch.
func (l *Loop) Run(ctx context.Context) {
	fmt.Fprintf(l.out, "Delivery loop starting (poll every %s, batch %d)...\n", l.poll.Interval, l.poll.BatchSize)

	consecutiveFailures := 0
	alerted := false

	for {
		delay := l.poll.Interval
		if err := l.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			delay = backoffDelay(l.poll.BackoffBase, l.poll.BackoffMax, consecutiveFailures)
			log.Printf("delivery: poll: %v (next attempt in %s)", err, delay)

			if delay >= l.poll.BackoffMax && !alerted && l.alerts.Enabled() {
				alerted = true
				l.notify(ctx, telegraph.Event{
					Kind:     telegraph.KindStoreUnreachable,
					Title:    "Store unreachable",
					Detail:   fmt.Sprintf("%d consecutive poll failures, backed off to %s", consecutiveFailures, delay),
					Severity: "error",
				})
			}
		} else {
			consecutiveFailures = 0
			alerted = false
		}

		select {
		case <-ctx.Done():
			fmt.Fprintf(l.out, "Delivery loop stopped.\n")
			return
		case <-time.After(delay):
		}
	}
}

// RunOnce executes a single poll cycle: fetch one batch and process each
// notification to its outcome. Only a fetch failure is returned; a failure
// inside one notification is isolated, logged, and leaves that notification
// undelivered for the next cycle.
func (l *Loop) RunOnce(ctx context.Context) error {
	l.Counters.Cycles.Add(1)

	batch, err := l.store.PendingNotifications(ctx, l.poll.BatchSize)
	if err != nil {
		l.Counters.FetchFailures.Add(1)
		return fmt.Errorf("delivery: fetch pending: %w", err)
	}

	for i := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := l.process(ctx, batch[i]); err != nil {
			log.Printf("delivery: notification %s: %v", batch[i].ID, err)
		}
	}
	return nil
}

// backoffDelay computes the poll backoff for the nth consecutive failure:
// base doubling per failure, capped at max.
func backoffDelay(base, max time.Duration, failures int) time.Duration {
	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// process drives one notification to an outcome. A nil return means the
// notification reached a terminal state or was deliberately left undelivered
// for a retry; a non-nil return leaves it undelivered and is logged upstream.
func (l *Loop) process(ctx context.Context, n models.Notification) error {
	if err := l.store.MarkRead(ctx, n.ID); err != nil {
		log.Printf("delivery: mark read %s: %v", n.ID, err)
	}

	dctx, err := l.store.DeliveryContext(ctx, n.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted task or agent: retrying cannot fix a missing
			// referent, so absorb.
			return l.absorb(ctx, n.ID)
		}
		return fmt.Errorf("build context: %w", err)
	}

	if dctx.Agent.ID == "" || dctx.Task == nil {
		return l.absorb(ctx, n.ID)
	}

	verdict := policy.Evaluate(dctx)
	if !verdict.Deliver {
		l.Counters.Suppressed.Add(1)
		fmt.Fprintf(l.out, "Suppressed %s (%s) for %s: %s\n", n.ID, n.Type, dctx.Agent.ID, verdict.Rule)
		if err := l.store.MarkDelivered(ctx, n.ID); err != nil {
			return fmt.Errorf("mark delivered (suppressed): %w", err)
		}
		return nil
	}

	return l.deliver(ctx, n, dctx)
}

// absorb marks a notification delivered with nothing to do.
func (l *Loop) absorb(ctx context.Context, notificationID string) error {
	l.Counters.Absorbed.Add(1)
	if err := l.store.MarkDelivered(ctx, notificationID); err != nil {
		return fmt.Errorf("mark delivered (absorbed): %w", err)
	}
	l.retries.Clear(notificationID)
	return nil
}

// deliver renders the instruction, runs the gateway conversation, and
// concludes the notification.
func (l *Loop) deliver(ctx context.Context, n models.Notification, dctx *models.DeliveryContext) error {
	instruction, err := prompt.Instruction(dctx)
	if err != nil {
		return fmt.Errorf("render instruction: %w", err)
	}

	sessionKey := l.sessionKey(dctx)
	if sessionKey == "" {
		return l.absorb(ctx, n.ID)
	}

	reply, err := l.gateway.Send(ctx, sessionKey, instruction)
	if err != nil {
		// Failed sends are never silently dropped: leave undelivered so the
		// next poll retries.
		l.Counters.TransportFailures.Add(1)
		return fmt.Errorf("gateway send: %w", err)
	}
	l.registry.TouchMessage(dctx.Agent.ID, time.Now())

	if reply.Empty() {
		return l.concludeNoResponse(ctx, n, dctx)
	}

	finalText := reply.Text
	if len(reply.ToolCalls) > 0 {
		results := l.executeToolCalls(ctx, dctx, reply.ToolCalls)
		finalText, err = l.gateway.SubmitToolResults(ctx, sessionKey, reply.RequestID, results)
		if err != nil {
			l.Counters.TransportFailures.Add(1)
			return fmt.Errorf("submit tool results: %w", err)
		}
	}

	if finalText != "" {
		if err := l.store.PostThreadMessage(ctx, store.PostOpts{
			TaskID:          dctx.Task.ID,
			AgentID:         dctx.Agent.ID,
			Content:         finalText,
			SourceMessageID: n.MessageID,
		}); err != nil {
			return fmt.Errorf("post reply: %w", err)
		}

		// Assignment acceptance auto-advances a task awaiting acceptance by
		// one step, guarded by the expected prior status.
		if n.Type == models.NotificationAssignment && dctx.Task.Status == models.StatusAssigned {
			next, _ := models.NextStatus(models.StatusAssigned)
			if err := l.store.AdvanceTaskStatus(ctx, dctx.Task.ID, models.StatusAssigned, next); err != nil {
				log.Printf("delivery: auto-advance %s: %v", dctx.Task.ID, err)
			}
		}
	}

	if err := l.store.MarkDelivered(ctx, n.ID); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	l.retries.Clear(n.ID)
	l.Counters.Delivered.Add(1)
	return nil
}

// concludeNoResponse handles a gateway success that produced neither text nor
// tool calls.
func (l *Loop) concludeNoResponse(ctx context.Context, n models.Notification, dctx *models.DeliveryContext) error {
	if !policy.ShouldRetryOnNoResponse(dctx) {
		// Nothing is owed for passive types: terminal without a reply.
		if err := l.store.MarkDelivered(ctx, n.ID); err != nil {
			return fmt.Errorf("mark delivered (no response): %w", err)
		}
		l.Counters.Delivered.Add(1)
		return nil
	}

	decision := l.retries.Decide(n.ID, time.Now())
	if decision.ShouldRetry {
		l.Counters.Retried.Add(1)
		fmt.Fprintf(l.out, "No response for %s (attempt %d), will retry\n", n.ID, decision.Attempt)
		return nil
	}

	// Retries exhausted: one deterministic fallback, then terminal.
	l.Counters.Fallbacks.Add(1)
	if l.fallback.PostReply {
		if err := l.store.PostThreadMessage(ctx, store.PostOpts{
			TaskID:          dctx.Task.ID,
			AgentID:         dctx.Agent.ID,
			Content:         l.fallback.Message,
			SourceMessageID: n.MessageID,
		}); err != nil {
			log.Printf("delivery: post fallback %s: %v", n.ID, err)
		}
	}
	l.notify(ctx, telegraph.Event{
		Kind:     telegraph.KindRetryExhausted,
		Title:    "Notification retries exhausted",
		Detail:   fmt.Sprintf("notification %s (%s) for agent %s got no response after %d attempts", n.ID, n.Type, dctx.Agent.ID, decision.Attempt),
		Severity: "warning",
	})

	if err := l.store.MarkDelivered(ctx, n.ID); err != nil {
		return fmt.Errorf("mark delivered (fallback): %w", err)
	}
	l.retries.Clear(n.ID)
	return nil
}

// sessionKey resolves the gateway session key for the context's agent,
// preferring the live registry entry over the context snapshot.
func (l *Loop) sessionKey(dctx *models.DeliveryContext) string {
	if agent, ok := l.registry.Get(dctx.Agent.ID); ok {
		return agent.SessionKey
	}
	return dctx.Agent.SessionKey
}

// notify sends an operator alert, logging delivery trouble instead of
// propagating it.
func (l *Loop) notify(ctx context.Context, ev telegraph.Event) {
	if !l.alerts.Enabled() {
		return
	}
	if err := l.alerts.Notify(ctx, ev); err != nil {
		log.Printf("delivery: telegraph: %v", err)
	}
}
