package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zulandar/trainorder/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok-gw", 5*time.Second)
}

func TestSend(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"request_id":"req-1","text":"On my way."}`))
	})

	reply, err := c.Send(context.Background(), "sess-1", "do the thing")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/sessions/sess-1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok-gw" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["instruction"] != "do the thing" {
		t.Errorf("instruction = %v", gotBody["instruction"])
	}
	if id, _ := gotBody["request_id"].(string); id == "" {
		t.Error("request_id missing from body")
	}
	if reply.Text != "On my way." || reply.RequestID != "req-1" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestSend_FillsRequestID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"ok"}`))
	})

	reply, err := c.Send(context.Background(), "sess-1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply.RequestID == "" {
		t.Error("RequestID should fall back to the generated id")
	}
}

func TestSend_EscapesSessionKey(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"text":"ok"}`))
	})

	if _, err := c.Send(context.Background(), "sess/with odd chars", "hi"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/sessions/sess%2Fwith%20odd%20chars/messages" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestSend_Validation(t *testing.T) {
	c := NewClient("http://unused", "tok", time.Second)
	if _, err := c.Send(context.Background(), "", "hi"); err == nil {
		t.Error("expected error for empty session key")
	}
	if _, err := c.Send(context.Background(), "sess-1", ""); err == nil {
		t.Error("expected error for empty instruction")
	}
}

func TestSend_UnexpectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := c.Send(context.Background(), "sess-1", "hi"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestSubmitToolResults(t *testing.T) {
	var gotPath string
	var gotBody struct {
		RequestID string              `json:"request_id"`
		Results   []models.ToolResult `json:"results"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"text":"Done, status updated."}`))
	})

	text, err := c.SubmitToolResults(context.Background(), "sess-1", "req-1", []models.ToolResult{
		{ID: "tc-1", Success: true, Output: "task set to review"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/sessions/sess-1/tool_results" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.RequestID != "req-1" || len(gotBody.Results) != 1 {
		t.Errorf("body = %+v", gotBody)
	}
	if text != "Done, status updated." {
		t.Errorf("text = %q", text)
	}

	if _, err := c.SubmitToolResults(context.Background(), "sess-1", "", nil); err == nil {
		t.Error("expected error for empty request id")
	}
}

func TestReplyEmpty(t *testing.T) {
	tests := []struct {
		reply Reply
		want  bool
	}{
		{Reply{}, true},
		{Reply{Text: "hi"}, false},
		{Reply{ToolCalls: []models.ToolCall{{ID: "tc-1"}}}, false},
	}
	for _, tt := range tests {
		if got := tt.reply.Empty(); got != tt.want {
			t.Errorf("Empty(%+v) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}
