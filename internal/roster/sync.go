package roster

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zulandar/trainorder/internal/models"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// minSyncDelay guards against a cron expression that resolves to "now".
const minSyncDelay = time.Second

// SyncStore is the slice of the store API the syncer needs.
type SyncStore interface {
	ListAgents(ctx context.Context) ([]models.Agent, error)
}

// Hooks receive roster changes so dependents (the heartbeat scheduler) can
// react. Either hook may be nil.
type Hooks struct {
	// OnUpsert fires when an agent is newly registered or its session key or
	// heartbeat interval changed.
	OnUpsert func(agent models.Agent)
	// OnRemove fires when a previously known agent disappears upstream.
	OnRemove func(agentID string)
}

// Syncer periodically reconciles the Registry against the store's agent
// roster on a cron cadence.
type Syncer struct {
	store    SyncStore
	registry *Registry
	hooks    Hooks
	schedule cron.Schedule
	out      io.Writer
}

// NewSyncer creates a Syncer firing on the given 5-field cron expression.
func NewSyncer(store SyncStore, registry *Registry, cronExpr string, hooks Hooks, out io.Writer) (*Syncer, error) {
	if store == nil {
		return nil, fmt.Errorf("roster: store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("roster: registry is required")
	}
	if out == nil {
		out = io.Discard
	}

	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("roster: parse sync cron %q: %w", cronExpr, err)
	}

	return &Syncer{
		store:    store,
		registry: registry,
		hooks:    hooks,
		schedule: sched,
		out:      out,
	}, nil
}

// Run performs one immediate sync, then re-syncs on the cron cadence until
// ctx is cancelled. Sync failures are logged and retried at the next fire.
func (s *Syncer) Run(ctx context.Context) {
	if err := s.SyncOnce(ctx); err != nil {
		log.Printf("roster: initial sync: %v", err)
	}

	for {
		delay := time.Until(s.schedule.Next(time.Now()))
		if delay < minSyncDelay {
			delay = minSyncDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := s.SyncOnce(ctx); err != nil {
			log.Printf("roster: sync: %v", err)
		}
	}
}

// SyncOnce fetches the roster and reconciles the registry: upserts every
// listed agent and removes agents no longer listed. Each registry mutation is
// individually atomic; the pass as a whole is not, which at worst leaves one
// delivery cycle with a stale view.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("roster: list agents: %w", err)
	}

	seen := make(map[string]bool, len(agents))
	var added, changed, removed int

	for _, agent := range agents {
		seen[agent.ID] = true
		prev, known := s.registry.Get(agent.ID)
		if known && prev.SessionKey == agent.SessionKey && prev.HeartbeatMs == agent.HeartbeatMs {
			continue
		}

		s.registry.Register(agent)
		if known {
			changed++
		} else {
			added++
		}
		if s.hooks.OnUpsert != nil {
			s.hooks.OnUpsert(agent)
		}
	}

	for _, existing := range s.registry.List() {
		if seen[existing.ID] {
			continue
		}
		s.registry.Remove(existing.ID)
		removed++
		if s.hooks.OnRemove != nil {
			s.hooks.OnRemove(existing.ID)
		}
	}

	if added+changed+removed > 0 {
		fmt.Fprintf(s.out, "Roster synced: %d added, %d changed, %d removed (%d total)\n",
			added, changed, removed, s.registry.Len())
	}
	return nil
}
