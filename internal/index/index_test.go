package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahundt/ai-session-tools/internal/model"
	"github.com/ahundt/ai-session-tools/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloPath = "/Users/test/project/hello.py"

func fixtureIndex(t *testing.T) *Index {
	t.Helper()
	corpus, err := store.Load(context.Background(), store.Options{
		Root:    filepath.Join("..", "..", "testdata", "projects"),
		Workers: 2,
	})
	require.NoError(t, err)
	ix, err := FromCorpus(context.Background(), corpus, 2)
	require.NoError(t, err)
	return ix
}

var day = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// syntheticIndex builds files with 1..n edits and varied extensions,
// sessions and dates.
func syntheticIndex(n int) *Index {
	exts := []string{"go", "py", "md"}
	versions := make(map[string][]model.FileVersion)
	for i := 1; i <= n; i++ {
		path := fmt.Sprintf("/repo/dir%d/file%d.%s", i%2, i, exts[i%len(exts)])
		var vs []model.FileVersion
		for v := 1; v <= i; v++ {
			vs = append(vs, model.FileVersion{
				Path:             path,
				Version:          v,
				Content:          "x",
				Timestamp:        day.Add(time.Duration(i*24+v) * time.Hour),
				SessionID:        fmt.Sprintf("s%d", v%3),
				ReconstructionOK: true,
			})
		}
		versions[path] = vs
	}
	return Build(&store.Corpus{}, versions)
}

func TestBuildRecoveredFile(t *testing.T) {
	ix := fixtureIndex(t)

	f, ok := ix.File(helloPath)
	require.True(t, ok)
	assert.Equal(t, "hello.py", f.Name)
	assert.Equal(t, "py", f.Extension)
	assert.Equal(t, 4, f.Edits)
	assert.Equal(t, 1, f.Conflicts)
	assert.Equal(t, []string{"session-alpha", "session-beta"}, f.Sessions)
	assert.Equal(t, len("print('hello world')\n"), f.SizeBytes)
	assert.Equal(t, time.Date(2025, 1, 6, 9, 0, 1, 0, time.UTC), f.LastModified.UTC())

	_, ok = ix.File("/Users/test/project/notes.md")
	assert.False(t, ok, "incomplete tool call must not produce a file")
}

func TestVersions(t *testing.T) {
	ix := fixtureIndex(t)

	byPath, err := ix.Versions(helloPath)
	require.NoError(t, err)
	byName, err := ix.Versions("hello.py")
	require.NoError(t, err)
	assert.Equal(t, byPath, byName)

	require.Len(t, byPath, 4)
	want := []string{"print('hi')\n", "print('hello')\n", "print('hello')\n", "print('hello world')\n"}
	for i, v := range byPath {
		assert.Equal(t, i+1, v.Version)
		assert.Equal(t, want[i], v.Content)
	}
	assert.False(t, byPath[2].ReconstructionOK)
	assert.Equal(t, "session-beta", byPath[3].SessionID)
}

func TestVersionsNotFound(t *testing.T) {
	ix := fixtureIndex(t)

	_, err := ix.Versions("helo.py")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Contains(t, nf.Suggestions, helloPath)
}

func TestVersionsAmbiguous(t *testing.T) {
	v := []model.FileVersion{{Version: 1, ReconstructionOK: true}}
	ix := Build(&store.Corpus{}, map[string][]model.FileVersion{"/a/x.go": v, "/b/x.go": v})

	_, err := ix.Versions("x.go")
	var amb *AmbiguousError
	require.True(t, errors.As(err, &amb))
	assert.True(t, errors.Is(err, ErrAmbiguous))
	assert.Equal(t, []string{"/a/x.go", "/b/x.go"}, amb.Paths)

	got, err := ix.Versions("/b/x.go")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestFilesPattern(t *testing.T) {
	ix := fixtureIndex(t)

	for _, pattern := range []string{"", "*.PY", "HELLO", "h?llo.*", "*.{py,go}"} {
		files, err := ix.Files(FilterSpec{Pattern: pattern})
		require.NoError(t, err, pattern)
		assert.Len(t, files, 1, pattern)
	}

	files, err := ix.Files(FilterSpec{Pattern: "*.go"})
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = ix.Files(FilterSpec{Pattern: "["})
	assert.Error(t, err)
}

func TestFilesSortedByEdits(t *testing.T) {
	ix := syntheticIndex(6)

	files, err := ix.Files(FilterSpec{})
	require.NoError(t, err)
	require.Len(t, files, 6)
	for i := 1; i < len(files); i++ {
		assert.GreaterOrEqual(t, files[i-1].Edits, files[i].Edits)
	}
}

func TestFilesExtensionDenyWins(t *testing.T) {
	ix := syntheticIndex(6)

	files, err := ix.Files(FilterSpec{IncludeExtensions: []string{"py", ".go"}, ExcludeExtensions: []string{"PY"}})
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		assert.Equal(t, "go", f.Extension)
	}
}

func TestFilesDateRangeInclusive(t *testing.T) {
	ix := syntheticIndex(3)
	f, ok := ix.File("/repo/dir0/file2.md")
	require.True(t, ok)

	files, err := ix.Files(FilterSpec{After: f.LastModified, Before: f.LastModified})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, f.Path, files[0].Path)
}

func TestFilesSessions(t *testing.T) {
	ix := fixtureIndex(t)

	files, err := ix.Files(FilterSpec{IncludeSessions: []string{"session-beta"}})
	require.NoError(t, err)
	assert.Len(t, files, 1)

	files, err = ix.Files(FilterSpec{ExcludeSessions: []string{"session-beta"}})
	require.NoError(t, err)
	assert.Len(t, files, 1, "still touched by session-alpha")

	files, err = ix.Files(FilterSpec{ExcludeSessions: []string{"session-alpha", "session-beta"}})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFilterSpecMatchesPredicateChain(t *testing.T) {
	ix := syntheticIndex(8)
	all := ix.All()

	for k := 0; k <= 10; k++ {
		spec := FilterSpec{MinEdits: k}
		fromSpec, err := ix.Files(spec)
		require.NoError(t, err)

		chained, err := NewSearchFilter().ByEdits(k, 0).Apply(all)
		require.NoError(t, err)
		assert.Equal(t, fromSpec, chained, "min edits %d", k)

		built, err := FromSpec(spec).Apply(all)
		require.NoError(t, err)
		assert.Equal(t, fromSpec, built, "FromSpec min edits %d", k)
	}
}

func TestFilterSpecMatchesPredicateChainCombined(t *testing.T) {
	ix := syntheticIndex(9)
	spec := FilterSpec{
		Pattern:           "file*",
		MinEdits:          2,
		MaxEdits:          8,
		IncludeExtensions: []string{"go", "py"},
		ExcludeExtensions: []string{"go"},
		After:             day.Add(72 * time.Hour),
		IncludeSessions:   []string{"s1", "s2"},
		ExcludeSessions:   []string{"s0"},
	}

	want, err := ix.Files(spec)
	require.NoError(t, err)
	got, err := FromSpec(spec).Apply(ix.All())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSearchFilterCommutative(t *testing.T) {
	all := syntheticIndex(9).All()

	a, err := NewSearchFilter().ByExtension("py").ByEdits(3, 0).ByNamePattern("*file*").Apply(all)
	require.NoError(t, err)
	b, err := NewSearchFilter().ByNamePattern("*file*").ByEdits(3, 0).ByExtension("py").Apply(all)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSearchFilterChainIsIntersection(t *testing.T) {
	all := syntheticIndex(9).All()
	filters := []*SearchFilter{
		NewSearchFilter().ByExtension("py"),
		NewSearchFilter().ByEdits(3, 0),
		NewSearchFilter().ByNamePattern("*file*"),
		NewSearchFilter().ByDateRange(day.Add(72*time.Hour), time.Time{}),
		NewSearchFilter().BySessions([]string{"s1"}, nil),
	}

	counts := make(map[string]int)
	for _, f := range filters {
		got, err := f.Apply(all)
		require.NoError(t, err)
		for _, file := range got {
			counts[file.Path]++
		}
	}
	var want []model.RecoveredFile
	for _, file := range all {
		if counts[file.Path] == len(filters) {
			want = append(want, file)
		}
	}

	chained, err := NewSearchFilter().
		ByExtension("py").
		ByEdits(3, 0).
		ByNamePattern("*file*").
		ByDateRange(day.Add(72*time.Hour), time.Time{}).
		BySessions([]string{"s1"}, nil).
		Apply(all)
	require.NoError(t, err)
	require.NotEmpty(t, want)
	assert.Equal(t, want, chained)
}

func TestSearchFilterInvalidPattern(t *testing.T) {
	f := NewSearchFilter().ByNamePattern("[")
	assert.Error(t, f.Err())
	_, err := f.Apply(nil)
	assert.Error(t, err)
}

func TestSearchMessages(t *testing.T) {
	ix := fixtureIndex(t)

	res := ix.SearchMessages(MessageQuery{Query: "COMMIT"})
	require.Len(t, res.Messages, 2)
	assert.False(t, res.Truncated)
	assert.Equal(t, "session-alpha", res.Messages[0].SessionID)
	assert.Equal(t, "session-beta", res.Messages[1].SessionID)

	res = ix.SearchMessages(MessageQuery{Type: model.MessageAssistant})
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "Creating it.", res.Messages[0].Content)

	res = ix.SearchMessages(MessageQuery{Project: "OTHER"})
	assert.Len(t, res.Messages, 2)

	res = ix.SearchMessages(MessageQuery{Session: "session-al"})
	assert.Len(t, res.Messages, 4)
}

func TestSearchMessagesSystemExcluded(t *testing.T) {
	ix := fixtureIndex(t)
	res := ix.SearchMessages(MessageQuery{Query: "system-reminder"})
	assert.Empty(t, res.Messages)
}

func TestSearchMessagesTool(t *testing.T) {
	ix := fixtureIndex(t)

	res := ix.SearchMessages(MessageQuery{Tool: "edit"})
	require.Len(t, res.Messages, 3)
	for _, m := range res.Messages {
		assert.Equal(t, "Edit", m.ToolName)
		assert.Equal(t, model.MessageAssistant, m.Type)
	}

	res = ix.SearchMessages(MessageQuery{Tool: "Edit", Query: "hello world"})
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "session-beta", res.Messages[0].SessionID)

	res = ix.SearchMessages(MessageQuery{Tool: "Edit", Type: model.MessageUser})
	assert.Empty(t, res.Messages)
}

func TestSearchMessagesLimit(t *testing.T) {
	ix := fixtureIndex(t)

	res := ix.SearchMessages(MessageQuery{Query: "commit", Limit: 1})
	assert.Len(t, res.Messages, 1)
	assert.True(t, res.Truncated)

	res = ix.SearchMessages(MessageQuery{Query: "commit", Limit: 2})
	assert.Len(t, res.Messages, 2)
	assert.False(t, res.Truncated, "limit reached exactly when the source is exhausted")
}

func TestSearchMessagesMinLengthBeforeLimit(t *testing.T) {
	ix := fixtureIndex(t)

	res := ix.SearchMessages(MessageQuery{MinLength: 15, Limit: 2})
	require.Len(t, res.Messages, 2)
	assert.True(t, res.Truncated)
	assert.Equal(t, "Please create hello.py", res.Messages[0].Content)
	assert.Equal(t, "/commit fix the bug", res.Messages[1].Content)

	res = ix.SearchMessages(MessageQuery{MinLength: 20, Limit: 2})
	require.Len(t, res.Messages, 2)
	assert.False(t, res.Truncated)
	assert.Equal(t, "you deleted this and also need X", res.Messages[1].Content)
}

func TestSearchMessagesDateRange(t *testing.T) {
	ix := fixtureIndex(t)
	after := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	res := ix.SearchMessages(MessageQuery{Query: "commit", After: after})
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "session-beta", res.Messages[0].SessionID)
}

func TestSearchContext(t *testing.T) {
	ix := fixtureIndex(t)

	res := ix.SearchContext(MessageQuery{Query: "commit fix"}, 1)
	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, "/commit fix the bug", m.Match.Content)
	require.Len(t, m.Before, 1)
	assert.Equal(t, "Creating it.", m.Before[0].Content)
	require.Len(t, m.After, 1)
	assert.Equal(t, "you deleted this and also need X", m.After[0].Content)
}

func TestMessagesAndTimeline(t *testing.T) {
	ix := fixtureIndex(t)

	msgs, err := ix.Messages("session-alpha")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for _, m := range msgs {
		assert.Empty(t, m.ToolName)
	}

	timeline, err := ix.Timeline("session-alpha", 6)
	require.NoError(t, err)
	require.Len(t, timeline, 7)
	assert.Equal(t, "Please", timeline[0].ContentPreview)
	assert.Equal(t, model.MessageAssistant, timeline[1].Type)
	assert.Equal(t, 1, timeline[1].ToolCount)
	assert.Equal(t, "", timeline[2].ContentPreview)

	_, err = ix.Timeline("missing", 10)
	assert.True(t, errors.Is(err, store.ErrSessionNotFound))
}

func TestMessageFilter(t *testing.T) {
	ix := fixtureIndex(t)
	msgs, err := ix.Messages("session-alpha")
	require.NoError(t, err)

	got := NewMessageFilter().ByType(model.MessageUser).ByContent("DELETED").Apply(msgs)
	require.Len(t, got, 1)
	assert.Equal(t, "you deleted this and also need X", got[0].Content)

	assert.Len(t, NewMessageFilter().LongerThan(20).Apply(msgs), 2)
}

func TestSessions(t *testing.T) {
	ix := fixtureIndex(t)

	all := ix.Sessions(SessionQuery{})
	require.Len(t, all, 2)
	assert.Equal(t, "session-beta", all[0].ID, "newest first")

	filtered := ix.Sessions(SessionQuery{Project: "project"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "session-alpha", filtered[0].ID)

	before := time.Date(2025, 1, 5, 23, 59, 59, 0, time.UTC)
	assert.Len(t, ix.Sessions(SessionQuery{Before: before}), 1)
}

func TestStatistics(t *testing.T) {
	stats := fixtureIndex(t).Statistics()

	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 4, stats.TotalVersions)
	assert.Equal(t, 1, stats.TotalConflicts)
	assert.Equal(t, 2, stats.MalformedLines)
	assert.Equal(t, "hello.py", stats.LargestFile)
	assert.Equal(t, 4, stats.LargestFileEdits)
	assert.InDelta(t, 4.0, stats.AvgVersionsPerFile, 1e-9)
}

func TestStatisticsTieBreak(t *testing.T) {
	v := []model.FileVersion{{Version: 1, ReconstructionOK: true}}
	ix := Build(&store.Corpus{}, map[string][]model.FileVersion{"/z/b.go": v, "/y/a.go": v, "/x/c.go": v})

	stats := ix.Statistics()
	assert.Equal(t, "a.go", stats.LargestFile)
	assert.Equal(t, "/y/a.go", stats.LargestFilePath)
}

func TestAnalyzeSession(t *testing.T) {
	ix := fixtureIndex(t)

	a, err := ix.AnalyzeSession("session-alpha")
	require.NoError(t, err)
	assert.Equal(t, 12, a.TotalEvents)
	assert.Equal(t, 3, a.UserCount)
	assert.Equal(t, 1, a.AssistantCount)
	assert.Equal(t, map[string]int{"Write": 2, "Edit": 2}, a.ToolUses)
	assert.Equal(t, []string{helloPath, "/Users/test/project/notes.md"}, a.FilesTouched)
}

func TestBaseNameAndExtension(t *testing.T) {
	assert.Equal(t, "a.go", BaseName("/x/y/a.go"))
	assert.Equal(t, "a.go", BaseName(`C:\x\a.go`))
	assert.Equal(t, "", Extension(".bashrc"))
	assert.Equal(t, "gz", Extension("a.tar.gz"))
	assert.Equal(t, "", Extension("Makefile"))
}
