// Package index builds the read-only query layer over ingested sessions and
// reconstructed file histories.
package index

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ahundt/ai-session-tools/internal/claude"
	"github.com/ahundt/ai-session-tools/internal/model"
	"github.com/ahundt/ai-session-tools/internal/store"
	"github.com/sahilm/fuzzy"
	"github.com/tidwall/gjson"
)

var (
	// ErrNotFound is returned for a path or file name that was never observed.
	ErrNotFound = errors.New("file not found")
	// ErrAmbiguous is returned when a file name matches several paths.
	ErrAmbiguous = errors.New("ambiguous file name")
)

const maxSuggestions = 5

// NotFoundError reports an unknown path together with close matches.
type NotFoundError struct {
	Query       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%s: %s", ErrNotFound, e.Query)
	}
	return fmt.Sprintf("%s: %s (did you mean %s?)", ErrNotFound, e.Query, strings.Join(e.Suggestions, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AmbiguousError reports a file name shared by several paths.
type AmbiguousError struct {
	Query string
	Paths []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s: %s matches %s", ErrAmbiguous, e.Query, strings.Join(e.Paths, ", "))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }

// Index is built once by Build and never modified afterwards.
type Index struct {
	corpus   *store.Corpus
	sessions []model.Session

	versions map[string][]model.FileVersion
	files    map[string]model.RecoveredFile
	paths    []string            // sorted
	byName   map[string][]string // base name -> sorted paths

	messages  []model.SessionMessage // text messages and tool records, global order
	malformed int
}

// Build derives every aggregate from the corpus and the replayed versions.
func Build(corpus *store.Corpus, versions map[string][]model.FileVersion) *Index {
	ix := &Index{
		corpus:   corpus,
		versions: versions,
		files:    make(map[string]model.RecoveredFile, len(versions)),
		byName:   make(map[string][]string),
	}

	for _, log := range corpus.Logs {
		ix.sessions = append(ix.sessions, log.Session)
		ix.malformed += log.Session.MalformedLines
		ix.messages = append(ix.messages, sessionMessages(log, true)...)
	}
	sort.SliceStable(ix.messages, func(i, j int) bool {
		a, b := ix.messages[i], ix.messages[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.SessionID != b.SessionID {
			return a.SessionID < b.SessionID
		}
		return a.Position < b.Position
	})

	for path, vs := range versions {
		if len(vs) == 0 {
			continue
		}
		file := recoveredFile(path, vs)
		ix.files[path] = file
		ix.paths = append(ix.paths, path)
		ix.byName[file.Name] = append(ix.byName[file.Name], path)
	}
	sort.Strings(ix.paths)
	for _, paths := range ix.byName {
		sort.Strings(paths)
	}

	return ix
}

func recoveredFile(path string, versions []model.FileVersion) model.RecoveredFile {
	name := BaseName(path)
	seen := make(map[string]bool)
	file := model.RecoveredFile{
		Path:         path,
		Name:         name,
		Extension:    Extension(name),
		Edits:        len(versions),
		FirstSeen:    versions[0].Timestamp,
		LastModified: versions[len(versions)-1].Timestamp,
		SizeBytes:    len(versions[len(versions)-1].Content),
	}
	for _, v := range versions {
		if !v.ReconstructionOK {
			file.Conflicts++
		}
		if !seen[v.SessionID] {
			seen[v.SessionID] = true
			file.Sessions = append(file.Sessions, v.SessionID)
		}
	}
	sort.Strings(file.Sessions)
	return file
}

// BaseName returns the last element of a logged path. Both separators are
// accepted since logs may come from another platform.
func BaseName(path string) string {
	path = strings.TrimRight(path, `/\`)
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Extension returns the extension of name without the dot, or "".
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i+1:]
}

// sessionMessages converts a session's events to searchable records.
// Tool uses are included only when withTools is set.
func sessionMessages(log *claude.SessionLog, withTools bool) []model.SessionMessage {
	var out []model.SessionMessage
	project := log.Session.ProjectDir
	for _, event := range log.Events {
		meta := event.Meta()
		msg := model.SessionMessage{
			Timestamp:  meta.Timestamp,
			SessionID:  meta.SessionID,
			ProjectDir: project,
			Position:   meta.Position,
		}
		switch e := event.(type) {
		case model.UserMessage:
			if e.System {
				continue
			}
			msg.Type = model.MessageUser
			msg.Content = e.Text
		case model.AssistantMessage:
			msg.Type = model.MessageAssistant
			msg.Content = e.Text
		case model.ToolUse:
			if !withTools {
				continue
			}
			msg.Type = model.MessageAssistant
			msg.Content = string(e.Arguments)
			msg.ToolName = e.ToolName
		case model.ToolResult:
			continue
		default:
			panic(fmt.Sprintf("unhandled event type %T", event))
		}
		out = append(out, msg)
	}
	return out
}

// SessionQuery narrows Sessions. Zero values do not filter.
type SessionQuery struct {
	Project string
	After   time.Time
	Before  time.Time
}

// Sessions returns matching sessions, newest first.
func (ix *Index) Sessions(q SessionQuery) []model.Session {
	project := strings.ToLower(q.Project)
	var out []model.Session
	for _, s := range ix.sessions {
		if project != "" && !strings.Contains(strings.ToLower(s.ProjectDir), project) {
			continue
		}
		if !inRange(s.StartedAt, q.After, q.Before) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Session resolves an ID or unique prefix to its ingested log.
func (ix *Index) Session(id string) (*claude.SessionLog, error) {
	return store.FindSession(ix.corpus, id)
}

// inRange reports whether ts lies within the inclusive bounds; a zero bound
// is open.
func inRange(ts, after, before time.Time) bool {
	if !after.IsZero() && ts.Before(after) {
		return false
	}
	if !before.IsZero() && ts.After(before) {
		return false
	}
	return true
}

// File returns the aggregate for an exact path.
func (ix *Index) File(path string) (model.RecoveredFile, bool) {
	f, ok := ix.files[path]
	return f, ok
}

// Resolve maps an exact path or a unique base name to an indexed path.
func (ix *Index) Resolve(pathOrName string) (string, error) {
	if _, ok := ix.files[pathOrName]; ok {
		return pathOrName, nil
	}
	switch paths := ix.byName[pathOrName]; len(paths) {
	case 0:
		return "", &NotFoundError{Query: pathOrName, Suggestions: ix.suggest(pathOrName)}
	case 1:
		return paths[0], nil
	default:
		return "", &AmbiguousError{Query: pathOrName, Paths: append([]string(nil), paths...)}
	}
}

func (ix *Index) suggest(query string) []string {
	matches := fuzzy.Find(query, ix.paths)
	var out []string
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// Versions returns the version history of a path or unique base name.
func (ix *Index) Versions(pathOrName string) ([]model.FileVersion, error) {
	path, err := ix.Resolve(pathOrName)
	if err != nil {
		return nil, err
	}
	vs := ix.versions[path]
	out := make([]model.FileVersion, len(vs))
	copy(out, vs)
	return out, nil
}

// Statistics aggregates the whole index.
func (ix *Index) Statistics() model.RecoveryStatistics {
	stats := model.RecoveryStatistics{
		TotalSessions:  len(ix.sessions),
		TotalFiles:     len(ix.files),
		MalformedLines: ix.malformed,
	}

	var largest *model.RecoveredFile
	for _, path := range ix.paths {
		f := ix.files[path]
		stats.TotalVersions += f.Edits
		stats.TotalConflicts += f.Conflicts
		if largest == nil || f.Edits > largest.Edits ||
			(f.Edits == largest.Edits && (f.Name < largest.Name || (f.Name == largest.Name && f.Path < largest.Path))) {
			largest = &f
		}
	}
	if largest != nil {
		stats.LargestFile = largest.Name
		stats.LargestFilePath = largest.Path
		stats.LargestFileEdits = largest.Edits
	}
	if stats.TotalFiles > 0 {
		stats.AvgVersionsPerFile = float64(stats.TotalVersions) / float64(stats.TotalFiles)
	}
	return stats
}

// AnalyzeSession counts messages and tool calls for one session.
func (ix *Index) AnalyzeSession(id string) (model.SessionAnalysis, error) {
	log, err := ix.Session(id)
	if err != nil {
		return model.SessionAnalysis{}, err
	}

	a := model.SessionAnalysis{
		SessionID:   log.Session.ID,
		ProjectDir:  log.Session.ProjectDir,
		TotalEvents: len(log.Events),
		ToolUses:    make(map[string]int),
		StartedAt:   log.Session.StartedAt,
		EndedAt:     log.Session.EndedAt,
	}
	touched := make(map[string]bool)
	for _, event := range log.Events {
		switch e := event.(type) {
		case model.UserMessage:
			if !e.System {
				a.UserCount++
			}
		case model.AssistantMessage:
			a.AssistantCount++
		case model.ToolUse:
			a.ToolUses[e.ToolName]++
			if fp := gjson.GetBytes(e.Arguments, "file_path"); fp.Type == gjson.String && fp.Str != "" {
				touched[fp.Str] = true
			}
		case model.ToolResult:
		default:
			panic(fmt.Sprintf("unhandled event type %T", event))
		}
	}
	for path := range touched {
		a.FilesTouched = append(a.FilesTouched, path)
	}
	sort.Strings(a.FilesTouched)
	return a, nil
}
