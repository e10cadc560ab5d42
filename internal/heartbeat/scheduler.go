// Package heartbeat wakes each registered agent on its own cadence,
// independently of the delivery loop, so agents can scan for work and the
// orchestrator can follow up on stale tasks.
package heartbeat

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/zulandar/trainorder/internal/config"
	"github.com/zulandar/trainorder/internal/gateway"
	"github.com/zulandar/trainorder/internal/models"
	"github.com/zulandar/trainorder/internal/roster"
	"github.com/zulandar/trainorder/internal/store"
	"github.com/zulandar/trainorder/internal/telegraph"
)

// RoleOrchestrator is the roster role of the account's orchestrator agent.
const RoleOrchestrator = "orchestrator"

// staggerFraction is the share of the shortest interval used to spread the
// initial firings.
const staggerFraction = 0.4

// failureAlertThreshold is how many consecutive check-in failures for one
// agent trigger an operator alert.
const failureAlertThreshold = 3

// Store is the slice of the store API the scheduler needs.
type Store interface {
	AssignedTasks(ctx context.Context, agentID string) ([]models.Task, error)
	TrackedTasks(ctx context.Context) ([]models.Task, error)
	PostThreadMessage(ctx context.Context, opts store.PostOpts) error
}

// Gateway is the slice of the gateway API the scheduler needs.
type Gateway interface {
	Send(ctx context.Context, sessionKey, instruction string) (*gateway.Reply, error)
}

// Options holds the dependencies and tuning for a Scheduler.
type Options struct {
	Store    Store
	Gateway  Gateway
	Registry *roster.Registry
	Alerts   *telegraph.Multi
	Config   config.HeartbeatConfig
	Out      io.Writer
}

// Scheduler owns one self-rearming timer per agent. Each timer re-arms only
// after its firing completes, so at most one check-in per agent is ever in
// flight, and scheduling an agent always clears any prior timer first.
type Scheduler struct {
	store    Store
	gateway  Gateway
	registry *roster.Registry
	alerts   *telegraph.Multi
	cfg      config.HeartbeatConfig
	out      io.Writer

	ctx context.Context

	mu       sync.Mutex
	timers   map[string]*time.Timer
	failures map[string]int
	stopped  bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("heartbeat: store is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("heartbeat: gateway is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("heartbeat: registry is required")
	}
	if opts.Config.StaggerCap <= 0 {
		opts.Config.StaggerCap = config.DefaultStaggerCap
	}
	if opts.Config.Jitter <= 0 {
		opts.Config.Jitter = config.DefaultJitter
	}
	if opts.Alerts == nil {
		opts.Alerts = telegraph.NewMulti()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	return &Scheduler{
		store:    opts.Store,
		gateway:  opts.Gateway,
		registry: opts.Registry,
		alerts:   opts.Alerts,
		cfg:      opts.Config,
		out:      opts.Out,
		timers:   make(map[string]*time.Timer),
		failures: make(map[string]int),
	}, nil
}

// Start binds the scheduler to ctx and arms the initial staggered timers for
// agents. When ctx is cancelled every live timer is cleared.
func (s *Scheduler) Start(ctx context.Context, agents []models.Agent) {
	s.ctx = ctx

	shortest := shortestInterval(agents)
	window := initialWindow(shortest, s.cfg.StaggerCap)

	for i, agent := range agents {
		delay := staggerDelay(window, i, len(agents)) + s.jitter()
		s.scheduleAfter(agent, delay)
	}
	fmt.Fprintf(s.out, "Heartbeats armed for %d agents (stagger window %s)\n", len(agents), window)

	go func() {
		<-ctx.Done()
		s.StopAll()
	}()
}

// Schedule (re)arms the timer for agent at its full interval plus jitter,
// clearing any existing timer first so an agent never has two live timers.
func (s *Scheduler) Schedule(agent models.Agent) {
	s.scheduleAfter(agent, agent.HeartbeatInterval()+s.jitter())
}

// Cancel clears the timer for agentID, if any.
func (s *Scheduler) Cancel(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[agentID]; ok {
		t.Stop()
		delete(s.timers, agentID)
	}
	delete(s.failures, agentID)
}

// StopAll clears every live timer and prevents re-arming.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// TimerCount returns the number of live timers, for metrics.
func (s *Scheduler) TimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// scheduleAfter arms a single timer for agent after delay.
func (s *Scheduler) scheduleAfter(agent models.Agent, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if prev, ok := s.timers[agent.ID]; ok {
		prev.Stop()
	}
	s.timers[agent.ID] = time.AfterFunc(delay, func() {
		s.fire(agent.ID)
	})
}

// fire runs one check-in for agentID and re-arms afterwards. Re-arming
// happens only after the check-in completes, so a slow gateway call spaces
// out the next cycle naturally.
func (s *Scheduler) fire(agentID string) {
	// Re-resolve the agent: its session key or interval may have changed,
	// or it may be gone entirely.
	agent, ok := s.registry.Get(agentID)
	if !ok {
		s.Cancel(agentID)
		return
	}

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	if err := s.runCheckIn(ctx, agent); err != nil {
		log.Printf("heartbeat: %s: %v", agent.ID, err)
		s.recordFailure(ctx, agent)
	} else {
		s.clearFailures(agent.ID)
	}

	s.Schedule(agent)
}

// recordFailure counts consecutive failures per agent and alerts at the
// threshold. One agent's failures never delay another agent's schedule.
func (s *Scheduler) recordFailure(ctx context.Context, agent models.Agent) {
	s.mu.Lock()
	s.failures[agent.ID]++
	count := s.failures[agent.ID]
	s.mu.Unlock()

	if count == failureAlertThreshold && s.alerts.Enabled() {
		err := s.alerts.Notify(ctx, telegraph.Event{
			Kind:     telegraph.KindHeartbeatFailing,
			Title:    "Agent heartbeat failing",
			Detail:   fmt.Sprintf("%d consecutive check-in failures for agent %s", count, agent.ID),
			Severity: "warning",
		})
		if err != nil {
			log.Printf("heartbeat: telegraph: %v", err)
		}
	}
}

func (s *Scheduler) clearFailures(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, agentID)
}

// jitter returns a random delay in [0, cfg.Jitter).
func (s *Scheduler) jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(s.cfg.Jitter)))
}

// shortestInterval returns the smallest heartbeat interval among agents.
func shortestInterval(agents []models.Agent) time.Duration {
	shortest := models.DefaultHeartbeatInterval
	for i := range agents {
		if iv := agents[i].HeartbeatInterval(); iv < shortest {
			shortest = iv
		}
	}
	return shortest
}

// initialWindow bounds the startup stagger window: 40% of the shortest
// interval, capped.
func initialWindow(shortest, limit time.Duration) time.Duration {
	window := time.Duration(float64(shortest) * staggerFraction)
	if window > limit {
		window = limit
	}
	return window
}

// staggerDelay spreads the i-th of n initial firings evenly across window.
func staggerDelay(window time.Duration, i, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return window * time.Duration(i) / time.Duration(n)
}
