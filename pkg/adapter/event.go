package adapter

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies what an AI event carries.
type EventType string

const (
	EventTextDelta  EventType = "text-delta"
	EventToolCall   EventType = "tool-call"
	EventToolResult EventType = "tool-result"
	EventThinking   EventType = "thinking"
	EventReasoning  EventType = "reasoning"
	EventStatus     EventType = "status"
	EventStep       EventType = "step"
	EventError      EventType = "error"
	EventStart      EventType = "start"
	EventComplete   EventType = "complete"
)

var eventTypes = map[EventType]bool{
	EventTextDelta:  true,
	EventToolCall:   true,
	EventToolResult: true,
	EventThinking:   true,
	EventReasoning:  true,
	EventStatus:     true,
	EventStep:       true,
	EventError:      true,
	EventStart:      true,
	EventComplete:   true,
}

// Known reports whether t is one of the event types above.
func (t EventType) Known() bool {
	return eventTypes[t]
}

// Status values of status and step events.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusInfo      = "info"
	StatusWarning   = "warning"
)

// Metadata is optional information attached to an event.
type Metadata struct {
	Timestamp    time.Time      `json:"timestamp,omitzero"`
	Model        string         `json:"model,omitempty"`
	InputTokens  int            `json:"input_tokens,omitempty"`
	OutputTokens int            `json:"output_tokens,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Event is one message of an AI inference stream. ToolArgs is kept as raw
// JSON so the key order of the arguments survives formatting.
type Event struct {
	Type       EventType       `json:"type"`
	Content    string          `json:"content,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`
	ToolResult any             `json:"tool_result,omitempty"`
	Status     string          `json:"status,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Metadata   *Metadata       `json:"metadata,omitempty"`
}

// PlainContent is the text shown when the event cannot be formatted.
func (e Event) PlainContent() string {
	if e.Content != "" {
		return e.Content
	}
	switch v := e.ToolResult.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (e Event) timestamp() time.Time {
	if e.Metadata == nil {
		return time.Time{}
	}
	return e.Metadata.Timestamp
}
