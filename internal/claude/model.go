// Package claude parses Claude Code session logs into normalized events.
package claude

import (
	"encoding/json"

	"github.com/ahundt/ai-session-tools/internal/model"
)

// EntryType represents the top-level "type" field values in Claude Code JSONL logs.
type EntryType string

const (
	EntryTypeUser      EntryType = "user"
	EntryTypeAssistant EntryType = "assistant"
	EntryTypeSummary   EntryType = "summary"
	EntryTypeSystem    EntryType = "system"
)

// ContentBlockType represents the "type" field in content blocks.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// Names of the tools whose successful calls mutate files.
const (
	ToolWrite     = "Write"
	ToolEdit      = "Edit"
	ToolMultiEdit = "MultiEdit"
)

// systemMarkers identify notifications injected into the user stream.
var systemMarkers = []string{
	"[Request interrupted",
	"<task-notification>",
	"<system-reminder>",
	"<local-command-stdout>",
}

// SessionSource identifies the log a session is read from.
type SessionSource struct {
	ID         string // session ID; falls back to the embedded sessionId when empty
	ProjectDir string
	Path       string
}

// SessionLog is the result of ingesting one session.
type SessionLog struct {
	Session model.Session
	Events  []model.Event
	Edits   []model.EditOp
}

type rawEntry struct {
	Type             string          `json:"type"`
	UUID             string          `json:"uuid"`
	SessionID        string          `json:"sessionId"`
	CWD              string          `json:"cwd"`
	GitBranch        string          `json:"gitBranch"`
	Timestamp        string          `json:"timestamp"`
	IsMeta           bool            `json:"isMeta"`
	IsCompactSummary bool            `json:"isCompactSummary"`
	Message          json.RawMessage `json:"message"`
}

type messagePayload struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	IsError   bool            `json:"is_error"`
}

type writeInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type editInput struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

type multiEditInput struct {
	FilePath string      `json:"file_path"`
	Edits    []editInput `json:"edits"`
}
