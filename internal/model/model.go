package model

import "time"

// Session holds metadata for one session log file.
type Session struct {
	ID                string    `json:"session_id"`
	Path              string    `json:"path"`
	ProjectDir        string    `json:"project_dir"`
	CWD               string    `json:"cwd"`
	GitBranch         string    `json:"git_branch"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at"`
	MessageCount      int       `json:"message_count"`
	Summary           string    `json:"summary"`
	MalformedLines    int       `json:"malformed_lines"`
	InvalidTimestamps int       `json:"invalid_timestamps"`
	HasCompactSummary bool      `json:"has_compact_summary"`
}

// EditKind distinguishes full-content writes from search/replace edits.
type EditKind string

const (
	EditWrite EditKind = "write"
	EditPatch EditKind = "edit"
)

// EditOp is a file mutation derived from a successful ToolUse.
type EditOp struct {
	Kind       EditKind  `json:"kind"`
	Path       string    `json:"path"`
	Content    string    `json:"content,omitempty"`
	OldText    string    `json:"old_text,omitempty"`
	NewText    string    `json:"new_text,omitempty"`
	ReplaceAll bool      `json:"replace_all,omitempty"`
	Tool       string    `json:"tool"`
	ToolUseID  string    `json:"tool_use_id"`
	SessionID  string    `json:"session_id"`
	Position   int       `json:"position"`
	SubIndex   int       `json:"sub_index"` // order of the edit inside a MultiEdit call
	Timestamp  time.Time `json:"timestamp"`
}

// Snippet returns the text the operation inserts into the file.
func (op EditOp) Snippet() string {
	if op.Kind == EditWrite {
		return op.Content
	}
	return op.NewText
}

// FileVersion is one reconstructed snapshot of a path.
type FileVersion struct {
	Path             string    `json:"path"`
	Version          int       `json:"version"`
	Content          string    `json:"content"`
	LineCount        int       `json:"line_count"`
	LineDelta        int       `json:"line_delta"`
	Timestamp        time.Time `json:"timestamp"`
	SessionID        string    `json:"session_id"`
	ReconstructionOK bool      `json:"reconstruction_ok"`
	ConflictReason   string    `json:"conflict_reason,omitempty"`
	Tool             string    `json:"tool"`
	ToolUseID        string    `json:"tool_use_id"`
	Snippet          string    `json:"-"`
}

// RecoveredFile summarizes the version history of one path.
type RecoveredFile struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Extension    string    `json:"extension"`
	Edits        int       `json:"edits"`
	Conflicts    int       `json:"conflicts"`
	Sessions     []string  `json:"sessions"`
	FirstSeen    time.Time `json:"first_seen"`
	LastModified time.Time `json:"last_modified"`
	SizeBytes    int       `json:"size_bytes"`
}

// MessageType is the author of a SessionMessage.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
)

// SessionMessage is a searchable conversation record. ToolName is set when
// the record re-exposes a ToolUse, in which case Content holds the
// serialized tool arguments.
type SessionMessage struct {
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	SessionID  string      `json:"session_id"`
	ProjectDir string      `json:"project_dir"`
	ToolName   string      `json:"tool_name,omitempty"`
	Position   int         `json:"-"`
}

// CorrectionMatch is a user message that matched a correction pattern.
type CorrectionMatch struct {
	Category       string    `json:"category"`
	MatchedPattern string    `json:"matched_pattern"`
	Content        string    `json:"content"`
	SessionID      string    `json:"session_id"`
	ProjectDir     string    `json:"project_dir"`
	Timestamp      time.Time `json:"timestamp"`
}

// PlanningCommandCount aggregates uses of one slash command.
type PlanningCommandCount struct {
	Command     string   `json:"command"`
	Count       int      `json:"count"`
	SessionIDs  []string `json:"session_ids"`
	ProjectDirs []string `json:"project_dirs"`
}

// RecoveryStatistics aggregates the whole index.
type RecoveryStatistics struct {
	TotalSessions      int     `json:"total_sessions"`
	TotalFiles         int     `json:"total_files"`
	TotalVersions      int     `json:"total_versions"`
	TotalConflicts     int     `json:"total_conflicts"`
	MalformedLines     int     `json:"malformed_lines"`
	LargestFile        string  `json:"largest_file"`
	LargestFilePath    string  `json:"largest_file_path"`
	LargestFileEdits   int     `json:"largest_file_edits"`
	AvgVersionsPerFile float64 `json:"avg_versions_per_file"`
}

// CrossRefRecord reports whether one version's text survives in a file.
type CrossRefRecord struct {
	Version          int       `json:"version"`
	Tool             string    `json:"tool"`
	Timestamp        time.Time `json:"timestamp"`
	SessionID        string    `json:"session_id"`
	Path             string    `json:"path"`
	ContentSnippet   string    `json:"content_snippet"`
	FoundInCurrent   bool      `json:"found_in_current"`
	ReconstructionOK bool      `json:"reconstruction_ok"`
}

// SessionAnalysis holds per-session usage counters.
type SessionAnalysis struct {
	SessionID      string         `json:"session_id"`
	ProjectDir     string         `json:"project_dir"`
	TotalEvents    int            `json:"total_events"`
	UserCount      int            `json:"user_count"`
	AssistantCount int            `json:"assistant_count"`
	ToolUses       map[string]int `json:"tool_uses_by_name"`
	FilesTouched   []string       `json:"files_touched"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        time.Time      `json:"ended_at"`
}

// ContextMatch is a matching message with its neighbors from the same session.
type ContextMatch struct {
	Match  SessionMessage   `json:"match"`
	Before []SessionMessage `json:"context_before"`
	After  []SessionMessage `json:"context_after"`
}

// TimelineEntry is one user or assistant turn of a session timeline.
type TimelineEntry struct {
	Type           MessageType `json:"type"`
	Timestamp      time.Time   `json:"timestamp"`
	ContentPreview string      `json:"content_preview"`
	ToolCount      int         `json:"tool_count"`
}
