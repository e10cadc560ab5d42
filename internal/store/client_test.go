package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestClient spins up a store stub that replies with the given handler and
// returns a client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok-123", "acct-1", 5*time.Second)
}

func okJSON(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	if data == "" {
		w.Write([]byte(`{"ok":true}`))
		return
	}
	w.Write([]byte(`{"ok":true,"data":` + data + `}`))
}

func TestDo_HeadersAndEnvelope(t *testing.T) {
	var got struct {
		auth, account, requestID, path string
		envelope                       envelope
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.account = r.Header.Get("X-Account")
		got.requestID = r.Header.Get("X-Request-ID")
		got.path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got.envelope)
		okJSON(w, "")
	})

	if err := c.MarkRead(context.Background(), "ntf-1"); err != nil {
		t.Fatal(err)
	}
	if got.auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.account != "acct-1" {
		t.Errorf("X-Account = %q", got.account)
	}
	if got.requestID == "" {
		t.Error("X-Request-ID missing")
	}
	if got.path != "/api/actions" {
		t.Errorf("path = %q, want /api/actions", got.path)
	}
	if got.envelope.Action != "notifications.mark_read" {
		t.Errorf("action = %q", got.envelope.Action)
	}
}

func TestDo_NotFoundMapsToSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":{"code":"not_found","message":"no such notification"}}`))
	})

	_, err := c.DeliveryContext(context.Background(), "ntf-gone")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDo_ActionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":{"code":"conflict","message":"task moved"}}`))
	})

	err := c.AdvanceTaskStatus(context.Background(), "tsk-00000001", "assigned", "in_progress")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("non-not_found code must not map to ErrNotFound")
	}
}

func TestDo_UnexpectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if err := c.MarkDelivered(context.Background(), "ntf-1"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestPendingNotifications(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var env envelope
		json.NewDecoder(r.Body).Decode(&env)
		if env.Action != "notifications.pending" {
			t.Errorf("action = %q", env.Action)
		}
		okJSON(w, `{"notifications":[{"id":"ntf-1","type":"mention"},{"id":"ntf-2","type":"assignment"}]}`)
	})

	batch, err := c.PendingNotifications(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].ID != "ntf-1" {
		t.Errorf("batch = %+v", batch)
	}

	if _, err := c.PendingNotifications(context.Background(), 0); err == nil {
		t.Error("expected error for a non-positive limit")
	}
}

func TestCreateTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		okJSON(w, `{"id":"tsk-0000cafe"}`)
	})

	id, err := c.CreateTask(context.Background(), CreateTaskOpts{Title: "Spot the reefer", CreatedBy: "agt-1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "tsk-0000cafe" {
		t.Errorf("id = %q", id)
	}

	if _, err := c.CreateTask(context.Background(), CreateTaskOpts{}); err == nil {
		t.Error("expected error for missing title")
	}
}

func TestPostThreadMessage_Validation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		okJSON(w, "")
	})

	tests := []struct {
		name string
		opts PostOpts
		ok   bool
	}{
		{"complete", PostOpts{TaskID: "tsk-00000001", AgentID: "agt-1", Content: "hi"}, true},
		{"missing task", PostOpts{AgentID: "agt-1", Content: "hi"}, false},
		{"missing agent", PostOpts{TaskID: "tsk-00000001", Content: "hi"}, false},
		{"missing content", PostOpts{TaskID: "tsk-00000001", AgentID: "agt-1"}, false},
	}
	for _, tt := range tests {
		err := c.PostThreadMessage(context.Background(), tt.opts)
		if tt.ok && err != nil {
			t.Errorf("%s: %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestListAgents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		okJSON(w, `{"agents":[{"id":"agt-1","session_key":"sess-1","heartbeat_ms":600000}]}`)
	})

	agents, err := c.ListAgents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 || agents[0].SessionKey != "sess-1" {
		t.Errorf("agents = %+v", agents)
	}
	if got := agents[0].HeartbeatInterval(); got != 10*time.Minute {
		t.Errorf("interval = %s, want 10m", got)
	}
}
