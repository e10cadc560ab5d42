package models

import "encoding/json"

// ToolCall is one action an agent asked the engine to perform against the
// store.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ToolResult is the structured outcome of one tool call. Failures are
// reported here rather than raised, so the agent can interpret them and
// report being blocked.
type ToolResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}
