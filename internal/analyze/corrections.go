// Package analyze detects user corrections and slash-command usage in
// conversation records.
package analyze

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ahundt/ai-session-tools/internal/model"
)

// ErrInvalidPattern is returned for a correction pattern that is not of the
// form "category:keyword".
var ErrInvalidPattern = errors.New("invalid correction pattern")

// DefaultCorrectionLimit caps Find results when the query sets no limit.
const DefaultCorrectionLimit = 50

// CorrectionPattern is one keyword and the category it reports.
type CorrectionPattern struct {
	Category string
	Keyword  string
}

func (p CorrectionPattern) String() string { return p.Category + ":" + p.Keyword }

// ParseCorrectionPattern parses "category:keyword". The keyword may itself
// contain colons.
func ParseCorrectionPattern(s string) (CorrectionPattern, error) {
	category, keyword, ok := strings.Cut(s, ":")
	category = strings.TrimSpace(category)
	if !ok || category == "" || keyword == "" {
		return CorrectionPattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	}
	return CorrectionPattern{Category: category, Keyword: keyword}, nil
}

// ParseCorrectionPatterns parses every entry, stopping at the first error.
func ParseCorrectionPatterns(list []string) ([]CorrectionPattern, error) {
	out := make([]CorrectionPattern, 0, len(list))
	for _, s := range list {
		p, err := ParseCorrectionPattern(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

var defaultCorrections = []CorrectionPattern{
	{"regression", "you deleted"},
	{"regression", "you removed"},
	{"regression", "lost"},
	{"regression", "regressed"},
	{"regression", "rollback"},
	{"regression", "revert"},
	{"skip_step", "you forgot"},
	{"skip_step", "you missed"},
	{"skip_step", "you skipped"},
	{"skip_step", "don't forget"},
	{"skip_step", "missing step"},
	{"misunderstanding", "wrong"},
	{"misunderstanding", "incorrect"},
	{"misunderstanding", "mistake"},
	{"misunderstanding", "nono"},
	{"misunderstanding", "no, "},
	{"misunderstanding", "that's not correct"},
	{"incomplete", "also need"},
	{"incomplete", "must also"},
	{"incomplete", "not done"},
	{"incomplete", "not finished"},
	{"incomplete", "still need"},
}

// DefaultCorrectionPatterns returns a copy of the built-in pattern list.
func DefaultCorrectionPatterns() []CorrectionPattern {
	return append([]CorrectionPattern(nil), defaultCorrections...)
}

// CorrectionPatterns is either the built-in list or a caller override that
// replaces it wholesale.
type CorrectionPatterns struct {
	overridden bool
	list       []CorrectionPattern
}

// BuiltInCorrections selects the built-in list.
func BuiltInCorrections() CorrectionPatterns { return CorrectionPatterns{} }

// OverrideCorrections selects list in place of the built-in patterns.
func OverrideCorrections(list []CorrectionPattern) CorrectionPatterns {
	return CorrectionPatterns{overridden: true, list: append([]CorrectionPattern(nil), list...)}
}

// IsBuiltIn reports whether the built-in list is in effect.
func (c CorrectionPatterns) IsBuiltIn() bool { return !c.overridden }

// Patterns returns the effective list in priority order.
func (c CorrectionPatterns) Patterns() []CorrectionPattern {
	if !c.overridden {
		return DefaultCorrectionPatterns()
	}
	return append([]CorrectionPattern(nil), c.list...)
}

// CorrectionQuery narrows Find. Zero values do not filter.
type CorrectionQuery struct {
	Project string
	After   time.Time
	Before  time.Time
	Limit   int
}

// CorrectionDetector matches user messages against an ordered pattern list.
type CorrectionDetector struct {
	patterns []CorrectionPattern
	lowered  []string
}

// NewCorrectionDetector builds a detector for the effective patterns.
func NewCorrectionDetector(c CorrectionPatterns) *CorrectionDetector {
	d := &CorrectionDetector{patterns: c.Patterns()}
	for _, p := range d.patterns {
		d.lowered = append(d.lowered, strings.ToLower(p.Keyword))
	}
	return d
}

// Match returns the first pattern whose keyword occurs in content, ignoring
// case.
func (d *CorrectionDetector) Match(content string) (CorrectionPattern, bool) {
	lower := strings.ToLower(content)
	for i, kw := range d.lowered {
		if strings.Contains(lower, kw) {
			return d.patterns[i], true
		}
	}
	return CorrectionPattern{}, false
}

// Find reports every user message that matches a pattern, newest first.
func (d *CorrectionDetector) Find(msgs []model.SessionMessage, q CorrectionQuery) []model.CorrectionMatch {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultCorrectionLimit
	}
	project := strings.ToLower(q.Project)

	var out []model.CorrectionMatch
	for _, m := range msgs {
		if !isUserText(m) || !keep(m, project, q.After, q.Before) {
			continue
		}
		p, ok := d.Match(m.Content)
		if !ok {
			continue
		}
		out = append(out, model.CorrectionMatch{
			Category:       p.Category,
			MatchedPattern: p.Keyword,
			Content:        m.Content,
			SessionID:      m.SessionID,
			ProjectDir:     m.ProjectDir,
			Timestamp:      m.Timestamp,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func isUserText(m model.SessionMessage) bool {
	return m.Type == model.MessageUser && m.ToolName == ""
}

// keep applies the project substring and inclusive date bounds.
func keep(m model.SessionMessage, project string, after, before time.Time) bool {
	if project != "" && !strings.Contains(strings.ToLower(m.ProjectDir), project) {
		return false
	}
	if !after.IsZero() && m.Timestamp.Before(after) {
		return false
	}
	if !before.IsZero() && m.Timestamp.After(before) {
		return false
	}
	return true
}
