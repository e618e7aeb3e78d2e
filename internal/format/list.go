// Package format provides formatting and rendering functions for session data.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ahundt/ai-session-tools/internal/model"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
)

// Output formats accepted by the Write functions.
const (
	FormatTable    = "table"
	FormatPlain    = "plain"
	FormatJSON     = "json"
	FormatJSONL    = "jsonl"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Formats lists every supported output format.
var Formats = []string{FormatTable, FormatPlain, FormatJSON, FormatJSONL, FormatCSV, FormatMarkdown}

const previewWidth = 80

// columns describes how a record type is laid out as rows.
type columns[T any] struct {
	titles  []string // table, csv and markdown header
	keys    []string // plain header
	configs []table.ColumnConfig
	empty   string // placeholder row for an empty table
	row     func(T) []any
}

func write[T any](w io.Writer, items []T, includeHeader bool, format string, cols columns[T]) error {
	format = strings.ToLower(format)
	switch format {
	case "", FormatTable, FormatCSV, FormatMarkdown:
		return writeTable(w, items, includeHeader, format, cols)
	case FormatPlain:
		return writePlain(w, items, includeHeader, cols)
	case FormatJSON:
		return writeJSON(w, items)
	case FormatJSONL:
		return writeJSONL(w, items)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writePlain[T any](w io.Writer, items []T, includeHeader bool, cols columns[T]) error {
	if includeHeader {
		if _, err := fmt.Fprintln(w, strings.Join(cols.keys, "\t")); err != nil {
			return err
		}
	}

	for _, item := range items {
		cells := cols.row(item)
		fields := make([]string, len(cells))
		for i, cell := range cells {
			fields[i] = escapeNewlines(fmt.Sprint(cell))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = true
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	return tw
}

func writeTable[T any](w io.Writer, items []T, includeHeader bool, format string, cols columns[T]) error {
	tw := newTable(w)
	tw.SetColumnConfigs(cols.configs)

	if includeHeader {
		header := make(table.Row, len(cols.titles))
		for i, title := range cols.titles {
			header[i] = title
		}
		tw.AppendHeader(header)
	}

	for _, item := range items {
		tw.AppendRow(table.Row(cols.row(item)))
	}

	switch format {
	case FormatCSV:
		_ = tw.RenderCSV()
	case FormatMarkdown:
		_ = tw.RenderMarkdown()
	default:
		if len(items) == 0 {
			placeholder := make(table.Row, len(cols.titles))
			placeholder[0] = cols.empty
			for i := 1; i < len(placeholder); i++ {
				placeholder[i] = "-"
			}
			tw.AppendRow(placeholder)
		}
		_ = tw.Render()
	}
	return nil
}

func left(n int) table.ColumnConfig {
	return table.ColumnConfig{Number: n, Align: text.AlignLeft, AlignHeader: text.AlignCenter}
}

func right(n int) table.ColumnConfig {
	return table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignCenter}
}

func wide(n int) table.ColumnConfig {
	return table.ColumnConfig{Number: n, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: previewWidth}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// Preview flattens s to one line and clips it to width display cells.
func Preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// WriteSessions writes session summaries to w in the requested format.
func WriteSessions(w io.Writer, items []model.Session, includeHeader bool, format string) error {
	return write(w, items, includeHeader, format, columns[model.Session]{
		titles:  []string{"Started", "Session ID", "Project", "Branch", "Messages", "Summary"},
		keys:    []string{"started_at", "session_id", "project_dir", "git_branch", "message_count", "summary"},
		configs: []table.ColumnConfig{left(1), left(2), left(3), left(4), right(5), wide(6)},
		empty:   "(no sessions)",
		row: func(s model.Session) []any {
			return []any{timestamp(s.StartedAt), s.ID, s.ProjectDir, s.GitBranch, s.MessageCount, s.Summary}
		},
	})
}

// WriteFiles writes recovered file aggregates to w.
func WriteFiles(w io.Writer, items []model.RecoveredFile, includeHeader bool, format string) error {
	return write(w, items, includeHeader, format, columns[model.RecoveredFile]{
		titles:  []string{"Name", "Edits", "Conflicts", "Sessions", "Last Modified", "Size", "Path"},
		keys:    []string{"name", "edits", "conflicts", "sessions", "last_modified", "size_bytes", "path"},
		configs: []table.ColumnConfig{left(1), right(2), right(3), right(4), left(5), right(6), wide(7)},
		empty:   "(no files)",
		row: func(f model.RecoveredFile) []any {
			return []any{f.Name, f.Edits, f.Conflicts, len(f.Sessions), timestamp(f.LastModified), f.SizeBytes, f.Path}
		},
	})
}

// WriteVersions writes a file's version history to w. Content is omitted
// except in the JSON formats.
func WriteVersions(w io.Writer, items []model.FileVersion, includeHeader bool, format string) error {
	return write(w, items, includeHeader, format, columns[model.FileVersion]{
		titles:  []string{"Version", "Timestamp", "Session ID", "Tool", "Lines", "Delta", "OK", "Conflict"},
		keys:    []string{"version", "timestamp", "session_id", "tool", "line_count", "line_delta", "reconstruction_ok", "conflict_reason"},
		configs: []table.ColumnConfig{right(1), left(2), left(3), left(4), right(5), right(6), left(7), left(8)},
		empty:   "(no versions)",
		row: func(v model.FileVersion) []any {
			return []any{v.Version, timestamp(v.Timestamp), v.SessionID, v.Tool, v.LineCount, signed(v.LineDelta), v.ReconstructionOK, v.ConflictReason}
		},
	})
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// WriteMessages writes conversation records to w. Tables show a one-line
// preview; the other formats carry the full content.
func WriteMessages(w io.Writer, items []model.SessionMessage, includeHeader bool, format string) error {
	format = strings.ToLower(format)
	preview := format == "" || format == FormatTable
	return write(w, items, includeHeader, format, columns[model.SessionMessage]{
		titles:  []string{"Timestamp", "Session ID", "Type", "Tool", "Content"},
		keys:    []string{"timestamp", "session_id", "type", "tool_name", "content"},
		configs: []table.ColumnConfig{left(1), left(2), left(3), left(4), wide(5)},
		empty:   "(no messages)",
		row: func(m model.SessionMessage) []any {
			content := m.Content
			if preview {
				content = Preview(content, previewWidth)
			}
			return []any{timestamp(m.Timestamp), m.SessionID, string(m.Type), m.ToolName, content}
		},
	})
}

// WriteCorrections writes correction matches to w.
func WriteCorrections(w io.Writer, items []model.CorrectionMatch, includeHeader bool, format string) error {
	return write(w, items, includeHeader, format, columns[model.CorrectionMatch]{
		titles:  []string{"Timestamp", "Category", "Pattern", "Session ID", "Project", "Content"},
		keys:    []string{"timestamp", "category", "matched_pattern", "session_id", "project_dir", "content"},
		configs: []table.ColumnConfig{left(1), left(2), left(3), left(4), left(5), wide(6)},
		empty:   "(no corrections)",
		row: func(c model.CorrectionMatch) []any {
			return []any{timestamp(c.Timestamp), c.Category, c.MatchedPattern, c.SessionID, c.ProjectDir, Preview(c.Content, previewWidth)}
		},
	})
}

// WritePlanning writes slash-command counts to w.
func WritePlanning(w io.Writer, items []model.PlanningCommandCount, includeHeader bool, format string) error {
	return write(w, items, includeHeader, format, columns[model.PlanningCommandCount]{
		titles:  []string{"Command", "Count", "Sessions", "Projects"},
		keys:    []string{"command", "count", "sessions", "projects"},
		configs: []table.ColumnConfig{left(1), right(2), right(3), wide(4)},
		empty:   "(no commands)",
		row: func(p model.PlanningCommandCount) []any {
			return []any{p.Command, p.Count, len(p.SessionIDs), strings.Join(p.ProjectDirs, ", ")}
		},
	})
}

// WriteCrossRef writes cross-reference records to w.
func WriteCrossRef(w io.Writer, items []model.CrossRefRecord, includeHeader bool, format string) error {
	return write(w, items, includeHeader, format, columns[model.CrossRefRecord]{
		titles:  []string{"Version", "Timestamp", "Session ID", "Tool", "Found", "Snippet"},
		keys:    []string{"version", "timestamp", "session_id", "tool", "found_in_current", "content_snippet"},
		configs: []table.ColumnConfig{right(1), left(2), left(3), left(4), left(5), wide(6)},
		empty:   "(no edits)",
		row: func(r model.CrossRefRecord) []any {
			return []any{r.Version, timestamp(r.Timestamp), r.SessionID, r.Tool, r.FoundInCurrent, Preview(r.ContentSnippet, previewWidth)}
		},
	})
}

// WriteTimeline writes a session timeline to w.
func WriteTimeline(w io.Writer, items []model.TimelineEntry, includeHeader bool, format string) error {
	return write(w, items, includeHeader, format, columns[model.TimelineEntry]{
		titles:  []string{"Timestamp", "Type", "Tools", "Preview"},
		keys:    []string{"timestamp", "type", "tool_count", "content_preview"},
		configs: []table.ColumnConfig{left(1), left(2), right(3), wide(4)},
		empty:   "(no events)",
		row: func(e model.TimelineEntry) []any {
			return []any{timestamp(e.Timestamp), string(e.Type), e.ToolCount, Preview(e.ContentPreview, previewWidth)}
		},
	})
}

type field struct {
	Key   string
	Title string
	Value any
}

func writeFields(w io.Writer, v any, fields []field, includeHeader bool, format string) error {
	format = strings.ToLower(format)
	switch format {
	case FormatJSON:
		return writeJSON(w, v)
	case FormatJSONL:
		return json.NewEncoder(w).Encode(v)
	}
	return write(w, fields, includeHeader, format, columns[field]{
		titles:  []string{"Metric", "Value"},
		keys:    []string{"key", "value"},
		configs: []table.ColumnConfig{left(1), right(2)},
		empty:   "(empty)",
		row: func(f field) []any {
			if format == FormatPlain {
				return []any{f.Key, f.Value}
			}
			return []any{f.Title, f.Value}
		},
	})
}

// WriteStatistics writes index-wide totals to w.
func WriteStatistics(w io.Writer, s model.RecoveryStatistics, includeHeader bool, format string) error {
	return writeFields(w, s, []field{
		{"total_sessions", "Sessions", s.TotalSessions},
		{"total_files", "Files", s.TotalFiles},
		{"total_versions", "Versions", s.TotalVersions},
		{"total_conflicts", "Conflicts", s.TotalConflicts},
		{"malformed_lines", "Malformed lines", s.MalformedLines},
		{"largest_file", "Most edited file", s.LargestFile},
		{"largest_file_edits", "Most edited file edits", s.LargestFileEdits},
		{"avg_versions_per_file", "Avg versions per file", fmt.Sprintf("%.2f", s.AvgVersionsPerFile)},
	}, includeHeader, format)
}

// WriteAnalysis writes per-session counters to w. Tool counts follow the
// fixed fields, one row per tool, sorted by name.
func WriteAnalysis(w io.Writer, a model.SessionAnalysis, includeHeader bool, format string) error {
	fields := []field{
		{"session_id", "Session", a.SessionID},
		{"project_dir", "Project", a.ProjectDir},
		{"started_at", "Started", timestamp(a.StartedAt)},
		{"ended_at", "Ended", timestamp(a.EndedAt)},
		{"total_events", "Events", a.TotalEvents},
		{"user_count", "User messages", a.UserCount},
		{"assistant_count", "Assistant messages", a.AssistantCount},
		{"files_touched", "Files touched", len(a.FilesTouched)},
	}
	for _, name := range sortedToolNames(a.ToolUses) {
		fields = append(fields, field{"tool." + name, "Tool " + name, a.ToolUses[name]})
	}
	return writeFields(w, a, fields, includeHeader, format)
}

func sortedToolNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type contextRow struct {
	Role string
	model.SessionMessage
}

// WriteContextMatches writes each match between its surrounding messages.
// The JSON formats keep the nested structure.
func WriteContextMatches(w io.Writer, items []model.ContextMatch, includeHeader bool, format string) error {
	format = strings.ToLower(format)
	switch format {
	case FormatJSON:
		return writeJSON(w, items)
	case FormatJSONL:
		return writeJSONL(w, items)
	}

	var rows []contextRow
	for _, m := range items {
		for _, msg := range m.Before {
			rows = append(rows, contextRow{"before", msg})
		}
		rows = append(rows, contextRow{"match", m.Match})
		for _, msg := range m.After {
			rows = append(rows, contextRow{"after", msg})
		}
	}
	preview := format == "" || format == FormatTable
	return write(w, rows, includeHeader, format, columns[contextRow]{
		titles:  []string{"Context", "Timestamp", "Session ID", "Type", "Content"},
		keys:    []string{"context", "timestamp", "session_id", "type", "content"},
		configs: []table.ColumnConfig{left(1), left(2), left(3), left(4), wide(5)},
		empty:   "(no messages)",
		row: func(r contextRow) []any {
			content := r.Content
			if preview {
				content = Preview(content, previewWidth)
			}
			return []any{r.Role, timestamp(r.Timestamp), r.SessionID, string(r.Type), content}
		},
	})
}
