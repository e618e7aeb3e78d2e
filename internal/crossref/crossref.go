// Package crossref checks which recorded edits still survive in a file's
// current content.
package crossref

import (
	"strings"

	"github.com/ahundt/ai-session-tools/internal/model"
)

// DefaultSnippetChars bounds the snippet shown in each record.
const DefaultSnippetChars = 200

// Mode selects what is tested for containment.
type Mode int

const (
	// ModeSnippet tests the text each operation inserted: the full content
	// of a Write or the new text of an Edit.
	ModeSnippet Mode = iota
	// ModeContent tests the full content of every cleanly replayed version.
	ModeContent
)

// Options narrows and tunes Check.
type Options struct {
	SessionID    string // session ID prefix; empty means every session
	Mode         Mode
	SnippetChars int
}

// Check reports, for each version in order, whether its text is a verbatim
// substring of current. The displayed snippet is clipped to SnippetChars but
// containment is always tested on the whole text. An operation that inserted
// nothing, such as a deletion, is found only while current is exactly the
// content it produced.
func Check(versions []model.FileVersion, current string, opts Options) []model.CrossRefRecord {
	limit := opts.SnippetChars
	if limit <= 0 {
		limit = DefaultSnippetChars
	}

	var out []model.CrossRefRecord
	for _, v := range versions {
		if opts.SessionID != "" && !strings.HasPrefix(v.SessionID, opts.SessionID) {
			continue
		}

		text := v.Snippet
		if opts.Mode == ModeContent {
			if !v.ReconstructionOK {
				continue
			}
			text = v.Content
		}

		out = append(out, model.CrossRefRecord{
			Version:          v.Version,
			Tool:             v.Tool,
			Timestamp:        v.Timestamp,
			SessionID:        v.SessionID,
			Path:             v.Path,
			ContentSnippet:   clip(text, limit),
			FoundInCurrent:   found(v, text, current),
			ReconstructionOK: v.ReconstructionOK,
		})
	}
	return out
}

func found(v model.FileVersion, text, current string) bool {
	if text == "" {
		return v.ReconstructionOK && current == v.Content
	}
	return strings.Contains(current, text)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
