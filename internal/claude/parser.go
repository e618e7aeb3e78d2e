package claude

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ahundt/ai-session-tools/internal/model"
	"github.com/tidwall/gjson"
)

// ErrMalformedLine is returned for a log line that is not a JSON object record.
var ErrMalformedLine = errors.New("malformed log line")

const (
	unknownBranch = "unknown"
	summaryWidth  = 160
)

var (
	commandNameRe = regexp.MustCompile(`<command-name>\s*(/[^<\s]+)\s*</command-name>`)
	commandArgsRe = regexp.MustCompile(`(?s)<command-args>(.*?)</command-args>`)
)

// record is one decoded log line. String message content is normalized to a
// single text block.
type record struct {
	Type             EntryType
	SessionID        string
	CWD              string
	GitBranch        string
	Timestamp        time.Time
	InvalidTimestamp bool
	IsMeta           bool
	IsCompactSummary bool
	Blocks           []contentBlock
}

// IngestFile reads the session log at path. The session ID is the file name
// without its extension.
func IngestFile(path, projectDir string) (*SessionLog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Ingest(file, SessionSource{ID: id, ProjectDir: projectDir, Path: path})
}

// Ingest parses every line of a session log. Lines that are not valid records,
// including lines longer than maxLineBytes, are skipped and counted in
// Session.MalformedLines.
func Ingest(r io.Reader, src SessionSource) (*SessionLog, error) {
	b := newBuilder(src)

	lines := newLineReader(r, maxLineBytes)
	for {
		raw, oversized, err := lines.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read session: %w", err)
		}
		if oversized {
			b.session.MalformedLines++
			continue
		}

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		rec, err := parseRecord(line)
		if err != nil {
			b.session.MalformedLines++
			continue
		}
		b.add(rec)
	}

	return b.finish(), nil
}

// Write payloads carry whole files.
var maxLineBytes = 64 * 1024 * 1024

// lineReader splits a log into lines of at most max bytes. Longer lines are
// drained and reported as oversized instead of failing the whole read.
type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(r io.Reader, limit int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024), max: limit}
}

func (lr *lineReader) next() ([]byte, bool, error) {
	var (
		line      []byte
		oversized bool
		read      int
	)
	for {
		chunk, err := lr.r.ReadSlice('\n')
		read += len(chunk)
		if !oversized {
			if len(line)+len(chunk) > lr.max {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return nil, false, io.EOF
			}
			return line, oversized, nil
		case err != nil:
			return nil, false, err
		}
		return line, oversized, nil
	}
}

func parseRecord(line []byte) (record, error) {
	if !gjson.ValidBytes(line) || !gjson.ParseBytes(line).IsObject() {
		return record{}, ErrMalformedLine
	}

	var entry rawEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return record{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	// A record whose timestamp cannot be parsed is kept with a zero time.
	var (
		ts        time.Time
		invalidTS bool
	)
	if entry.Timestamp != "" {
		var err error
		if ts, err = parseTimestamp(entry.Timestamp); err != nil {
			ts, invalidTS = time.Time{}, true
		}
	}

	rec := record{
		Type:             EntryType(entry.Type),
		SessionID:        entry.SessionID,
		CWD:              entry.CWD,
		GitBranch:        entry.GitBranch,
		Timestamp:        ts,
		InvalidTimestamp: invalidTS,
		IsMeta:           entry.IsMeta,
		IsCompactSummary: entry.IsCompactSummary,
	}

	switch rec.Type {
	case EntryTypeUser, EntryTypeAssistant:
		if len(entry.Message) == 0 {
			break
		}
		var msg messagePayload
		if err := json.Unmarshal(entry.Message, &msg); err != nil {
			// Some older logs store the message as a bare string.
			var text string
			if json.Unmarshal(entry.Message, &text) != nil {
				return record{}, fmt.Errorf("%w: message: %v", ErrMalformedLine, err)
			}
			rec.Blocks = []contentBlock{{Type: string(ContentBlockTypeText), Text: text}}
			break
		}
		rec.Blocks = decodeContent(msg.Content)
	}

	return rec, nil
}

func decodeContent(raw json.RawMessage) []contentBlock {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []contentBlock{{Type: string(ContentBlockTypeText), Text: asString}}
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return blocks
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing timestamp")
	}

	// Try RFC3339Nano first
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}

	// Try RFC3339
	return time.Parse(time.RFC3339, value)
}

type builder struct {
	src        SessionSource
	session    model.Session
	embeddedID string
	events     []model.Event
}

func newBuilder(src SessionSource) *builder {
	return &builder{
		src: src,
		session: model.Session{
			ID:         src.ID,
			Path:       src.Path,
			ProjectDir: src.ProjectDir,
			GitBranch:  unknownBranch,
		},
	}
}

func (b *builder) meta(ts time.Time) model.EventMeta {
	return model.EventMeta{SessionID: b.session.ID, Position: len(b.events), Timestamp: ts}
}

func (b *builder) add(rec record) {
	if b.embeddedID == "" && rec.SessionID != "" {
		b.embeddedID = rec.SessionID
	}
	if !rec.Timestamp.IsZero() {
		if b.session.StartedAt.IsZero() {
			b.session.StartedAt = rec.Timestamp
		}
		if rec.Timestamp.After(b.session.EndedAt) {
			b.session.EndedAt = rec.Timestamp
		}
	}
	if rec.InvalidTimestamp {
		b.session.InvalidTimestamps++
	}
	if b.session.CWD == "" && rec.CWD != "" {
		b.session.CWD = rec.CWD
	}
	if b.session.GitBranch == unknownBranch && rec.GitBranch != "" {
		b.session.GitBranch = rec.GitBranch
	}
	if rec.IsCompactSummary {
		b.session.HasCompactSummary = true
	}

	switch rec.Type {
	case EntryTypeUser:
		b.session.MessageCount++
		b.addUser(rec)
	case EntryTypeAssistant:
		b.session.MessageCount++
		b.addAssistant(rec)
	}
}

func (b *builder) addUser(rec record) {
	var texts []string
	for _, block := range rec.Blocks {
		switch ContentBlockType(block.Type) {
		case ContentBlockTypeText:
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		case ContentBlockTypeToolResult:
			b.events = append(b.events, model.ToolResult{
				EventMeta: b.meta(rec.Timestamp),
				ToolUseID: block.ToolUseID,
				OK:        !block.IsError,
			})
		}
	}
	if len(texts) == 0 {
		return
	}

	text := normalizeCommandText(strings.Join(texts, " "))
	system := rec.IsMeta || isSystemText(text)
	if !system && b.session.Summary == "" {
		b.session.Summary = buildSummaryText(text)
	}
	b.events = append(b.events, model.UserMessage{
		EventMeta: b.meta(rec.Timestamp),
		Text:      text,
		System:    system,
	})
}

func (b *builder) addAssistant(rec record) {
	var texts []string
	var tools []contentBlock
	for _, block := range rec.Blocks {
		switch ContentBlockType(block.Type) {
		case ContentBlockTypeText:
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		case ContentBlockTypeToolUse:
			tools = append(tools, block)
		}
	}

	if len(texts) > 0 {
		b.events = append(b.events, model.AssistantMessage{
			EventMeta: b.meta(rec.Timestamp),
			Text:      strings.Join(texts, " "),
		})
	}
	for _, block := range tools {
		args := block.Input
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		b.events = append(b.events, model.ToolUse{
			EventMeta: b.meta(rec.Timestamp),
			ID:        block.ID,
			ToolName:  block.Name,
			Arguments: args,
		})
	}
}

func (b *builder) finish() *SessionLog {
	if b.session.ID == "" {
		b.session.ID = b.embeddedID
		for i, event := range b.events {
			b.events[i] = withSession(event, b.session.ID)
		}
	}

	succeeded := make(map[string]bool)
	for _, event := range b.events {
		if result, ok := event.(model.ToolResult); ok && result.OK {
			succeeded[result.ToolUseID] = true
		}
	}

	// An untimed edit takes the time of the last timed event before it so
	// it keeps its log position when the session's edits are ordered.
	var (
		edits []model.EditOp
		last  time.Time
	)
	for _, event := range b.events {
		if ts := event.Meta().Timestamp; !ts.IsZero() {
			last = ts
		}
		use, ok := event.(model.ToolUse)
		if !ok || use.ID == "" || !succeeded[use.ID] {
			continue
		}
		for _, op := range EditOps(use) {
			if op.Timestamp.IsZero() {
				op.Timestamp = last
			}
			edits = append(edits, op)
		}
	}

	return &SessionLog{Session: b.session, Events: b.events, Edits: edits}
}

func withSession(event model.Event, id string) model.Event {
	switch e := event.(type) {
	case model.UserMessage:
		e.SessionID = id
		return e
	case model.AssistantMessage:
		e.SessionID = id
		return e
	case model.ToolUse:
		e.SessionID = id
		return e
	case model.ToolResult:
		e.SessionID = id
		return e
	default:
		panic(fmt.Sprintf("claude: unhandled event type %T", event))
	}
}

// EditOps derives the file mutations a tool call performs. Tools that do not
// mutate files, and calls whose arguments cannot be decoded, yield nil.
func EditOps(use model.ToolUse) []model.EditOp {
	base := model.EditOp{
		Tool:      use.ToolName,
		ToolUseID: use.ID,
		SessionID: use.SessionID,
		Position:  use.Position,
		Timestamp: use.Timestamp,
	}

	switch use.ToolName {
	case ToolWrite:
		var in writeInput
		if err := json.Unmarshal(use.Arguments, &in); err != nil || in.FilePath == "" {
			return nil
		}
		op := base
		op.Kind = model.EditWrite
		op.Path = in.FilePath
		op.Content = in.Content
		return []model.EditOp{op}

	case ToolEdit:
		var in editInput
		if err := json.Unmarshal(use.Arguments, &in); err != nil || in.FilePath == "" {
			return nil
		}
		return []model.EditOp{patchOp(base, in.FilePath, in, 0)}

	case ToolMultiEdit:
		var in multiEditInput
		if err := json.Unmarshal(use.Arguments, &in); err != nil || in.FilePath == "" {
			return nil
		}
		ops := make([]model.EditOp, 0, len(in.Edits))
		for i, edit := range in.Edits {
			ops = append(ops, patchOp(base, in.FilePath, edit, i))
		}
		return ops
	}
	return nil
}

func patchOp(base model.EditOp, path string, in editInput, sub int) model.EditOp {
	op := base
	op.Kind = model.EditPatch
	op.Path = path
	op.OldText = in.OldString
	op.NewText = in.NewString
	op.ReplaceAll = in.ReplaceAll
	op.SubIndex = sub
	return op
}

func isSystemText(text string) bool {
	for _, marker := range systemMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// normalizeCommandText rewrites the tag form Claude Code records for slash
// commands ("<command-name>/commit</command-name>...") into "/commit args".
func normalizeCommandText(text string) string {
	m := commandNameRe.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	cmd := m[1]
	if args := commandArgsRe.FindStringSubmatch(text); args != nil {
		if a := strings.TrimSpace(args[1]); a != "" {
			cmd += " " + a
		}
	}
	return cmd
}

// buildSummaryText collapses whitespace and clips text for session listings.
func buildSummaryText(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= summaryWidth {
		return collapsed
	}
	return string(runes[:summaryWidth])
}
