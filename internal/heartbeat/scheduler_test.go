package heartbeat

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/trainorder/internal/config"
	"github.com/zulandar/trainorder/internal/gateway"
	"github.com/zulandar/trainorder/internal/models"
	"github.com/zulandar/trainorder/internal/roster"
	"github.com/zulandar/trainorder/internal/store"
)

// fakeStore implements Store with recorded calls.
type fakeStore struct {
	mu       sync.Mutex
	assigned []models.Task
	tracked  []models.Task
	posts    []store.PostOpts
	err      error
}

func (f *fakeStore) AssignedTasks(ctx context.Context, agentID string) ([]models.Task, error) {
	return f.assigned, f.err
}

func (f *fakeStore) TrackedTasks(ctx context.Context) ([]models.Task, error) {
	return f.tracked, f.err
}

func (f *fakeStore) PostThreadMessage(ctx context.Context, opts store.PostOpts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, opts)
	return nil
}

func (f *fakeStore) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

// fakeGateway implements Gateway with a fixed reply.
type fakeGateway struct {
	reply *gateway.Reply
	err   error
}

func (f *fakeGateway) Send(ctx context.Context, sessionKey, instruction string) (*gateway.Reply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func newTestScheduler(t *testing.T, st Store, gw Gateway) (*Scheduler, *roster.Registry) {
	t.Helper()
	registry := roster.NewRegistry()
	s, err := NewScheduler(Options{
		Store:    st,
		Gateway:  gw,
		Registry: registry,
		Config:   config.HeartbeatConfig{StaggerCap: 2 * time.Minute, Jitter: time.Millisecond},
		Out:      io.Discard,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s, registry
}

func TestSchedule_NoOverlappingTimers(t *testing.T) {
	s, registry := newTestScheduler(t, &fakeStore{}, &fakeGateway{reply: &gateway.Reply{}})
	agent := models.Agent{ID: "agt-1", SessionKey: "sess-1", HeartbeatMs: int64(time.Hour / time.Millisecond)}
	registry.Register(agent)

	s.Schedule(agent)
	s.Schedule(agent)

	if got := s.TimerCount(); got != 1 {
		t.Errorf("TimerCount = %d, want 1 (rescheduling must clear the prior timer)", got)
	}
}

func TestCancel(t *testing.T) {
	s, registry := newTestScheduler(t, &fakeStore{}, &fakeGateway{reply: &gateway.Reply{}})
	agent := models.Agent{ID: "agt-1", SessionKey: "sess-1", HeartbeatMs: int64(time.Hour / time.Millisecond)}
	registry.Register(agent)

	s.Schedule(agent)
	s.Cancel(agent.ID)

	if got := s.TimerCount(); got != 0 {
		t.Errorf("TimerCount = %d, want 0 after Cancel", got)
	}
}

func TestStopAll_PreventsRearming(t *testing.T) {
	s, registry := newTestScheduler(t, &fakeStore{}, &fakeGateway{reply: &gateway.Reply{}})
	agent := models.Agent{ID: "agt-1", SessionKey: "sess-1", HeartbeatMs: int64(time.Hour / time.Millisecond)}
	registry.Register(agent)

	s.Schedule(agent)
	s.StopAll()

	if got := s.TimerCount(); got != 0 {
		t.Errorf("TimerCount = %d, want 0 after StopAll", got)
	}

	s.Schedule(agent)
	if got := s.TimerCount(); got != 0 {
		t.Errorf("TimerCount = %d, want 0 (no arming after StopAll)", got)
	}
}

func TestStart_ArmsAllAgents(t *testing.T) {
	s, registry := newTestScheduler(t, &fakeStore{}, &fakeGateway{reply: &gateway.Reply{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agents := []models.Agent{
		{ID: "agt-1", SessionKey: "sess-1", HeartbeatMs: int64(time.Hour / time.Millisecond)},
		{ID: "agt-2", SessionKey: "sess-2", HeartbeatMs: int64(time.Hour / time.Millisecond)},
	}
	for _, a := range agents {
		registry.Register(a)
	}

	s.Start(ctx, agents)
	if got := s.TimerCount(); got != 2 {
		t.Errorf("TimerCount = %d, want 2", got)
	}
}

func TestFire_SkipsRemovedAgent(t *testing.T) {
	fs := &fakeStore{}
	s, _ := newTestScheduler(t, fs, &fakeGateway{reply: &gateway.Reply{Text: "update"}})

	// Agent never registered: fire must cancel rather than call out.
	s.fire("agt-ghost")

	if got := s.TimerCount(); got != 0 {
		t.Errorf("TimerCount = %d, want 0", got)
	}
	if fs.postCount() != 0 {
		t.Errorf("posts = %d, want 0", fs.postCount())
	}
}

func TestInitialWindow(t *testing.T) {
	tests := []struct {
		shortest time.Duration
		limit    time.Duration
		want     time.Duration
	}{
		{10 * time.Minute, 2 * time.Minute, 2 * time.Minute},  // capped
		{1 * time.Minute, 2 * time.Minute, 24 * time.Second},  // 40%
		{5 * time.Minute, 2 * time.Minute, 2 * time.Minute},   // exactly at cap
	}

	for _, tt := range tests {
		if got := initialWindow(tt.shortest, tt.limit); got != tt.want {
			t.Errorf("initialWindow(%s, %s) = %s, want %s", tt.shortest, tt.limit, got, tt.want)
		}
	}
}

func TestStaggerDelay(t *testing.T) {
	window := 100 * time.Second
	for i := 0; i < 4; i++ {
		got := staggerDelay(window, i, 4)
		want := time.Duration(i) * 25 * time.Second
		if got != want {
			t.Errorf("staggerDelay(i=%d) = %s, want %s", i, got, want)
		}
	}
	if staggerDelay(window, 0, 0) != 0 {
		t.Error("staggerDelay with n=0 should be 0")
	}
}

func TestSortTasks(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tasks := []models.Task{
		{ID: "tsk-00000001", Status: models.StatusInProgress, UpdatedAt: old},
		{ID: "tsk-00000002", Status: models.StatusBlocked, UpdatedAt: recent},
		{ID: "tsk-00000003", Status: models.StatusInProgress, UpdatedAt: recent},
	}

	worker := sortTasks(append([]models.Task(nil), tasks...), false)
	if worker[0].ID != "tsk-00000002" {
		t.Errorf("worker sort: first = %s, want blocked task first", worker[0].ID)
	}
	if worker[1].ID != "tsk-00000003" {
		t.Errorf("worker sort: second = %s, want most recently updated", worker[1].ID)
	}

	orch := sortTasks(append([]models.Task(nil), tasks...), true)
	if orch[1].ID != "tsk-00000001" {
		t.Errorf("orchestrator sort: second = %s, want stalest task", orch[1].ID)
	}
}
