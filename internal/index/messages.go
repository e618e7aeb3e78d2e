package index

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ahundt/ai-session-tools/internal/model"
)

// MessageQuery selects conversation records. Zero values do not filter.
type MessageQuery struct {
	Query     string // case-insensitive substring of the content
	Type      model.MessageType
	Tool      string // when set, only tool calls with this name are searched
	Project   string // substring of the project directory
	Session   string // session ID prefix
	After     time.Time
	Before    time.Time
	MinLength int // content must be longer than this many runes
	Limit     int
}

// SearchResult holds matching messages in global order. Truncated is set
// when Limit stopped the search before every record was examined.
type SearchResult struct {
	Messages  []model.SessionMessage
	Truncated bool
}

type messageMatcher struct {
	q       MessageQuery
	query   string
	tool    string
	project string
}

func newMatcher(q MessageQuery) messageMatcher {
	return messageMatcher{
		q:       q,
		query:   strings.ToLower(q.Query),
		tool:    strings.ToLower(q.Tool),
		project: strings.ToLower(q.Project),
	}
}

// scope reports whether m belongs to the searched population, ignoring the
// text query and date range.
func (mm messageMatcher) scope(m model.SessionMessage) bool {
	if mm.tool != "" {
		if m.ToolName == "" || strings.ToLower(m.ToolName) != mm.tool {
			return false
		}
	} else if m.ToolName != "" {
		return false
	}
	if mm.q.Type != "" && m.Type != mm.q.Type {
		return false
	}
	if mm.project != "" && !strings.Contains(strings.ToLower(m.ProjectDir), mm.project) {
		return false
	}
	if mm.q.Session != "" && !strings.HasPrefix(m.SessionID, mm.q.Session) {
		return false
	}
	return true
}

func (mm messageMatcher) hit(m model.SessionMessage) bool {
	if mm.query != "" && !strings.Contains(strings.ToLower(m.Content), mm.query) {
		return false
	}
	if mm.q.MinLength > 0 && utf8.RuneCountInString(m.Content) <= mm.q.MinLength {
		return false
	}
	return inRange(m.Timestamp, mm.q.After, mm.q.Before)
}

// SearchMessages scans every indexed record. Tool calls are searched only
// when q.Tool is set, in which case their content is the JSON arguments.
func (ix *Index) SearchMessages(q MessageQuery) SearchResult {
	mm := newMatcher(q)
	var res SearchResult
	for _, m := range ix.messages {
		if !mm.scope(m) || !mm.hit(m) {
			continue
		}
		if q.Limit > 0 && len(res.Messages) == q.Limit {
			res.Truncated = true
			break
		}
		res.Messages = append(res.Messages, m)
	}
	return res
}

// ContextResult holds matches with surrounding messages.
type ContextResult struct {
	Matches   []model.ContextMatch
	Truncated bool
}

// SearchContext is SearchMessages with up to window neighbors on each side
// of every match, taken from the same session and the same searched
// population.
func (ix *Index) SearchContext(q MessageQuery, window int) ContextResult {
	mm := newMatcher(q)

	var order []string
	bySession := make(map[string][]model.SessionMessage)
	for _, m := range ix.messages {
		if !mm.scope(m) {
			continue
		}
		if _, ok := bySession[m.SessionID]; !ok {
			order = append(order, m.SessionID)
		}
		bySession[m.SessionID] = append(bySession[m.SessionID], m)
	}

	var res ContextResult
	for _, id := range order {
		msgs := bySession[id]
		for i, m := range msgs {
			if !mm.hit(m) {
				continue
			}
			if q.Limit > 0 && len(res.Matches) == q.Limit {
				res.Truncated = true
				return res
			}
			lo := max(0, i-window)
			hi := min(len(msgs), i+1+window)
			res.Matches = append(res.Matches, model.ContextMatch{
				Match:  m,
				Before: append([]model.SessionMessage(nil), msgs[lo:i]...),
				After:  append([]model.SessionMessage(nil), msgs[i+1:hi]...),
			})
		}
	}
	return res
}

// Messages returns the user and assistant text of one session in log order.
func (ix *Index) Messages(sessionID string) ([]model.SessionMessage, error) {
	log, err := ix.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionMessages(log, false), nil
}

// Timeline summarizes one session turn by turn. Tool calls are counted on
// the assistant turn that issued them.
func (ix *Index) Timeline(sessionID string, previewChars int) ([]model.TimelineEntry, error) {
	log, err := ix.Session(sessionID)
	if err != nil {
		return nil, err
	}

	var out []model.TimelineEntry
	open := -1 // index of the assistant entry collecting tool calls
	for _, event := range log.Events {
		switch e := event.(type) {
		case model.UserMessage:
			if e.System {
				continue
			}
			out = append(out, model.TimelineEntry{
				Type:           model.MessageUser,
				Timestamp:      e.Timestamp,
				ContentPreview: preview(e.Text, previewChars),
			})
			open = -1
		case model.AssistantMessage:
			out = append(out, model.TimelineEntry{
				Type:           model.MessageAssistant,
				Timestamp:      e.Timestamp,
				ContentPreview: preview(e.Text, previewChars),
			})
			open = len(out) - 1
		case model.ToolUse:
			if open < 0 || !out[open].Timestamp.Equal(e.Timestamp) {
				out = append(out, model.TimelineEntry{Type: model.MessageAssistant, Timestamp: e.Timestamp})
				open = len(out) - 1
			}
			out[open].ToolCount++
		case model.ToolResult:
		default:
			panic(fmt.Sprintf("unhandled event type %T", event))
		}
	}
	return out, nil
}

func preview(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MessagePredicate reports whether a message should be kept.
type MessagePredicate func(model.SessionMessage) bool

// MessageFilter is a predicate chain over already materialized messages.
type MessageFilter struct {
	predicates []MessagePredicate
}

// NewMessageFilter returns an empty chain that keeps every message.
func NewMessageFilter() *MessageFilter {
	return &MessageFilter{}
}

// ByType keeps messages of type t.
func (f *MessageFilter) ByType(t model.MessageType) *MessageFilter {
	return f.Custom(func(m model.SessionMessage) bool { return m.Type == t })
}

// BySession keeps messages whose session ID starts with prefix.
func (f *MessageFilter) BySession(prefix string) *MessageFilter {
	return f.Custom(func(m model.SessionMessage) bool { return strings.HasPrefix(m.SessionID, prefix) })
}

// ByContent keeps messages containing text, ignoring case.
func (f *MessageFilter) ByContent(text string) *MessageFilter {
	text = strings.ToLower(text)
	return f.Custom(func(m model.SessionMessage) bool { return strings.Contains(strings.ToLower(m.Content), text) })
}

// LongerThan keeps messages with more than n runes of content.
func (f *MessageFilter) LongerThan(n int) *MessageFilter {
	return f.Custom(func(m model.SessionMessage) bool { return len([]rune(m.Content)) > n })
}

// Custom adds an arbitrary predicate.
func (f *MessageFilter) Custom(p MessagePredicate) *MessageFilter {
	f.predicates = append(f.predicates, p)
	return f
}

// Apply returns the messages accepted by every predicate, in input order.
func (f *MessageFilter) Apply(msgs []model.SessionMessage) []model.SessionMessage {
	var out []model.SessionMessage
next:
	for _, m := range msgs {
		for _, p := range f.predicates {
			if !p(m) {
				continue next
			}
		}
		out = append(out, m)
	}
	return out
}
