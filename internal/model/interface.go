// Package model provides the event and record types shared by ingestion,
// reconstruction, indexing and rendering.
package model

import (
	"encoding/json"
	"time"
)

// EventKind identifies the variant of an Event.
type EventKind string

const (
	KindUserMessage      EventKind = "user_message"
	KindAssistantMessage EventKind = "assistant_message"
	KindToolUse          EventKind = "tool_use"
	KindToolResult       EventKind = "tool_result"
)

// Event is one normalized record from a session log. The set of
// implementations is closed: UserMessage, AssistantMessage, ToolUse and
// ToolResult. Consumers switch on the concrete type.
type Event interface {
	Kind() EventKind
	Meta() EventMeta
	isEvent()
}

// EventMeta carries the fields every event variant shares.
type EventMeta struct {
	SessionID string    `json:"session_id"`
	Position  int       `json:"position"` // zero-based record index within the session log
	Timestamp time.Time `json:"timestamp"`
}

// UserMessage is a text message typed by the user. System is set when the
// text is an injected notification rather than something the user wrote.
type UserMessage struct {
	EventMeta
	Text   string `json:"text"`
	System bool   `json:"system,omitempty"`
}

// AssistantMessage is the text portion of an assistant response.
type AssistantMessage struct {
	EventMeta
	Text string `json:"text"`
}

// ToolUse is a tool invocation issued by the assistant.
type ToolUse struct {
	EventMeta
	ID        string          `json:"id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult reports the outcome of a ToolUse.
type ToolResult struct {
	EventMeta
	ToolUseID string `json:"tool_use_id"`
	OK        bool   `json:"ok"`
}

func (e UserMessage) Kind() EventKind      { return KindUserMessage }
func (e AssistantMessage) Kind() EventKind { return KindAssistantMessage }
func (e ToolUse) Kind() EventKind          { return KindToolUse }
func (e ToolResult) Kind() EventKind       { return KindToolResult }

func (e UserMessage) Meta() EventMeta      { return e.EventMeta }
func (e AssistantMessage) Meta() EventMeta { return e.EventMeta }
func (e ToolUse) Meta() EventMeta          { return e.EventMeta }
func (e ToolResult) Meta() EventMeta       { return e.EventMeta }

func (UserMessage) isEvent()      {}
func (AssistantMessage) isEvent() {}
func (ToolUse) isEvent()          {}
func (ToolResult) isEvent()       {}
