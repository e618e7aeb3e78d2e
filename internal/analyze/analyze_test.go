package analyze

import (
	"errors"
	"testing"
	"time"

	"github.com/ahundt/ai-session-tools/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func user(session, project, content string, minute int) model.SessionMessage {
	return model.SessionMessage{
		Type:       model.MessageUser,
		Content:    content,
		SessionID:  session,
		ProjectDir: project,
		Timestamp:  base.Add(time.Duration(minute) * time.Minute),
	}
}

func TestParseCorrectionPattern(t *testing.T) {
	p, err := ParseCorrectionPattern("regression:deleted")
	require.NoError(t, err)
	assert.Equal(t, CorrectionPattern{Category: "regression", Keyword: "deleted"}, p)
	assert.Equal(t, "regression:deleted", p.String())

	p, err = ParseCorrectionPattern("urls:http://")
	require.NoError(t, err)
	assert.Equal(t, "http://", p.Keyword)

	for _, bad := range []string{"", "nocolon", ":keyword", "category:"} {
		_, err := ParseCorrectionPattern(bad)
		assert.True(t, errors.Is(err, ErrInvalidPattern), bad)
	}
}

func TestCorrectionFirstMatchWins(t *testing.T) {
	patterns, err := ParseCorrectionPatterns([]string{"regression:deleted", "incomplete:also need"})
	require.NoError(t, err)
	d := NewCorrectionDetector(OverrideCorrections(patterns))

	matches := d.Find([]model.SessionMessage{user("s", "p", "you deleted this and also need X", 0)}, CorrectionQuery{})

	require.Len(t, matches, 1)
	assert.Equal(t, "regression", matches[0].Category)
	assert.Equal(t, "deleted", matches[0].MatchedPattern)
}

func TestCorrectionOverrideReplacesBuiltIn(t *testing.T) {
	builtIn := BuiltInCorrections()
	assert.True(t, builtIn.IsBuiltIn())
	assert.Equal(t, DefaultCorrectionPatterns(), builtIn.Patterns())

	custom := OverrideCorrections([]CorrectionPattern{{Category: "style", Keyword: "tabs"}})
	assert.False(t, custom.IsBuiltIn())

	d := NewCorrectionDetector(custom)
	_, ok := d.Match("that is wrong")
	assert.False(t, ok, "built-in keywords are not merged into an override")
	p, ok := d.Match("use TABS please")
	assert.True(t, ok)
	assert.Equal(t, "style", p.Category)
}

func TestCorrectionEmptyOverride(t *testing.T) {
	d := NewCorrectionDetector(OverrideCorrections(nil))
	_, ok := d.Match("you deleted everything")
	assert.False(t, ok)
}

func TestCorrectionBuiltInCategories(t *testing.T) {
	d := NewCorrectionDetector(BuiltInCorrections())
	cases := map[string]string{
		"You Removed the handler": "regression",
		"you forgot the tests":    "skip_step",
		"No, use the other one":   "misunderstanding",
		"we still need docs":      "incomplete",
		"please add a README":     "",
	}
	for content, want := range cases {
		p, ok := d.Match(content)
		if want == "" {
			assert.False(t, ok, content)
			continue
		}
		assert.True(t, ok, content)
		assert.Equal(t, want, p.Category, content)
	}
}

func TestCorrectionFindFilters(t *testing.T) {
	d := NewCorrectionDetector(BuiltInCorrections())
	msgs := []model.SessionMessage{
		user("s1", "-Users-a-web", "wrong file", 1),
		user("s1", "-Users-a-web", "that's a mistake", 3),
		user("s2", "-Users-a-api", "incorrect", 2),
		{Type: model.MessageAssistant, Content: "wrong", SessionID: "s1", Timestamp: base},
		{Type: model.MessageAssistant, Content: "wrong", ToolName: "Bash", SessionID: "s1", Timestamp: base},
	}

	all := d.Find(msgs, CorrectionQuery{})
	require.Len(t, all, 3)
	assert.Equal(t, "that's a mistake", all[0].Content, "newest first")
	assert.Equal(t, "wrong file", all[2].Content)

	web := d.Find(msgs, CorrectionQuery{Project: "WEB"})
	assert.Len(t, web, 2)

	ranged := d.Find(msgs, CorrectionQuery{After: base.Add(2 * time.Minute), Before: base.Add(2 * time.Minute)})
	require.Len(t, ranged, 1)
	assert.Equal(t, "s2", ranged[0].SessionID)

	assert.Len(t, d.Find(msgs, CorrectionQuery{Limit: 1}), 1)
}

func TestCorrectionDefaultLimit(t *testing.T) {
	d := NewCorrectionDetector(BuiltInCorrections())
	var msgs []model.SessionMessage
	for i := 0; i < DefaultCorrectionLimit+10; i++ {
		msgs = append(msgs, user("s", "p", "wrong", i))
	}
	assert.Len(t, d.Find(msgs, CorrectionQuery{}), DefaultCorrectionLimit)
}

func TestCountCommandsDiscovery(t *testing.T) {
	msgs := []model.SessionMessage{
		user("S1", "p1", "/commit fix", 0),
		user("S2", "p2", "  /commit again", 1),
		user("S2", "p2", "/help", 2),
		user("S2", "p2", "see /usr/bin", 3),
		user("S1", "p1", "/ar:plannew-x do it", 4),
		{Type: model.MessageAssistant, Content: "/commit", SessionID: "S3", Timestamp: base},
	}

	counts := CountCommands(msgs, Discovery(), PlanningQuery{})

	require.Len(t, counts, 3)
	assert.Equal(t, model.PlanningCommandCount{
		Command:     "/commit",
		Count:       2,
		SessionIDs:  []string{"S1", "S2"},
		ProjectDirs: []string{"p1", "p2"},
	}, counts[0])
	assert.Equal(t, "/ar:plannew-x", counts[1].Command)
	assert.Equal(t, "/help", counts[2].Command)
	assert.Equal(t, 1, counts[2].Count)
}

func TestCountCommandsFixed(t *testing.T) {
	msgs := []model.SessionMessage{
		user("S1", "p", "/plannew build it", 0),
		user("S1", "p", "/plannew", 1),
		user("S2", "p", "/plannewer", 2),
		user("S2", "p", "/planrefine tighten", 3),
		user("S2", "p", "/commit", 4),
	}

	set := Fixed([]string{"/plannew", "/planrefine", "/planupdate"})
	assert.False(t, set.IsDiscovery())

	counts := CountCommands(msgs, set, PlanningQuery{})
	require.Len(t, counts, 2)
	assert.Equal(t, "/plannew", counts[0].Command)
	assert.Equal(t, 2, counts[0].Count)
	assert.Equal(t, []string{"S1"}, counts[0].SessionIDs)
	assert.Equal(t, "/planrefine", counts[1].Command)
	assert.Equal(t, 1, counts[1].Count)
}

func TestCountCommandsProjectAndDates(t *testing.T) {
	msgs := []model.SessionMessage{
		user("S1", "-Users-a-web", "/commit", 0),
		user("S2", "-Users-a-api", "/commit", 10),
	}

	counts := CountCommands(msgs, Discovery(), PlanningQuery{Project: "api"})
	require.Len(t, counts, 1)
	assert.Equal(t, []string{"S2"}, counts[0].SessionIDs)

	counts = CountCommands(msgs, Discovery(), PlanningQuery{Before: base.Add(5 * time.Minute)})
	require.Len(t, counts, 1)
	assert.Equal(t, []string{"S1"}, counts[0].SessionIDs)
}

func TestFixedEmptyIsDiscovery(t *testing.T) {
	assert.True(t, Fixed(nil).IsDiscovery())
	assert.True(t, Discovery().IsDiscovery())
}
