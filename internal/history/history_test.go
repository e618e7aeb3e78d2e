package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahundt/ai-session-tools/internal/merge"
	"github.com/ahundt/ai-session-tools/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func write(session string, sec int, content string) model.EditOp {
	return model.EditOp{Kind: model.EditWrite, Path: "a.py", Content: content, Tool: "Write", SessionID: session, Timestamp: at(sec)}
}

func edit(session string, sec int, oldText, newText string) model.EditOp {
	return model.EditOp{Kind: model.EditPatch, Path: "a.py", OldText: oldText, NewText: newText, Tool: "Edit", SessionID: session, Timestamp: at(sec)}
}

func TestReplayDenseVersions(t *testing.T) {
	ops := []model.EditOp{
		write("s", 1, "a\n"),
		edit("s", 2, "missing", "x"),
		edit("s", 3, "a", "b"),
		write("s", 4, "c\nd\n"),
	}

	versions := Replay("a.py", ops)

	require.Len(t, versions, len(ops))
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
		assert.Equal(t, "a.py", v.Path)
		if i > 0 {
			assert.False(t, v.Timestamp.Before(versions[i-1].Timestamp))
		}
	}
	assert.Equal(t, "b\n", versions[2].Content)
	assert.Equal(t, 2, versions[3].LineCount)
	assert.Equal(t, 1, versions[3].LineDelta)
	assert.Equal(t, 0, versions[0].LineDelta)
}

func TestReplayWriteRoundTrip(t *testing.T) {
	payload := "package main\n\nfunc main() {}\n\x00tail"

	versions := Replay("a.py", []model.EditOp{write("s", 1, "old"), write("s", 2, payload)})

	require.Len(t, versions, 2)
	assert.Equal(t, payload, versions[1].Content)
	assert.True(t, versions[1].ReconstructionOK)
	assert.Equal(t, payload, versions[1].Snippet)
}

func TestReplayOldTextNotFound(t *testing.T) {
	versions := Replay("a.py", []model.EditOp{write("s", 1, "x=1"), edit("s", 2, "y=1", "y=2")})

	require.Len(t, versions, 2)
	assert.False(t, versions[1].ReconstructionOK)
	assert.Equal(t, ReasonNotFound, versions[1].ConflictReason)
	assert.Equal(t, versions[0].Content, versions[1].Content)
	assert.Equal(t, "y=2", versions[1].Snippet)
}

func TestReplayNoBaseContent(t *testing.T) {
	versions := Replay("a.py", []model.EditOp{edit("s", 1, "a", "b")})

	require.Len(t, versions, 1)
	assert.False(t, versions[0].ReconstructionOK)
	assert.Equal(t, ReasonNoBase, versions[0].ConflictReason)
	assert.Equal(t, "", versions[0].Content)
}

func TestReplayAmbiguousMatch(t *testing.T) {
	versions := Replay("a.py", []model.EditOp{write("s", 1, "x x"), edit("s", 2, "x", "y")})

	assert.False(t, versions[1].ReconstructionOK)
	assert.Equal(t, ReasonAmbiguous, versions[1].ConflictReason)
	assert.Equal(t, "x x", versions[1].Content)
}

func TestReplayReplaceAll(t *testing.T) {
	op := edit("s", 2, "x", "y")
	op.ReplaceAll = true

	versions := Replay("a.py", []model.EditOp{write("s", 1, "x x"), op})

	assert.True(t, versions[1].ReconstructionOK)
	assert.Equal(t, "y y", versions[1].Content)
}

func TestReplayEmptyOldText(t *testing.T) {
	versions := Replay("a.py", []model.EditOp{write("s", 1, "abc"), edit("s", 2, "", "z")})

	assert.False(t, versions[1].ReconstructionOK)
	assert.Equal(t, ReasonEmptyOld, versions[1].ConflictReason)
	assert.Equal(t, "abc", versions[1].Content)
}

func TestReplayConflictDoesNotHaltLaterOps(t *testing.T) {
	versions := Replay("a.py", []model.EditOp{
		write("s", 1, "a"),
		edit("s", 2, "zzz", "q"),
		edit("s", 3, "a", "b"),
	})

	assert.True(t, versions[2].ReconstructionOK)
	assert.Equal(t, "b", versions[2].Content)
}

func TestTwoSessionMergeScenario(t *testing.T) {
	s1 := merge.SessionOps{SessionID: "S1", StartedAt: at(0), Ops: []model.EditOp{write("S1", 10, "x=1")}}
	s2 := merge.SessionOps{SessionID: "S2", StartedAt: at(15), Ops: []model.EditOp{edit("S2", 20, "x=1", "x=2")}}

	streams := merge.ByPath([]merge.SessionOps{s2, s1})
	all, err := ReplayAll(context.Background(), streams, 2)
	require.NoError(t, err)

	versions := all["a.py"]
	require.Len(t, versions, 2)
	assert.Equal(t, "x=1", versions[0].Content)
	assert.Equal(t, "S1", versions[0].SessionID)
	assert.True(t, versions[0].ReconstructionOK)
	assert.Equal(t, "x=2", versions[1].Content)
	assert.Equal(t, "S2", versions[1].SessionID)
	assert.True(t, versions[1].ReconstructionOK)
}

func TestSameSessionOutOfOrderScenario(t *testing.T) {
	w := write("S1", 5, "b = 1\n")
	w.Path = "b.py"
	e := edit("S1", 3, "b = 1", "b = 2")
	e.Path = "b.py"
	e.Position = 1

	streams := merge.ByPath([]merge.SessionOps{{SessionID: "S1", StartedAt: at(0), Ops: []model.EditOp{w, e}}})
	all, err := ReplayAll(context.Background(), streams, 1)
	require.NoError(t, err)

	versions := all["b.py"]
	require.Len(t, versions, 2)
	assert.False(t, versions[0].ReconstructionOK)
	assert.Equal(t, ReasonNoBase, versions[0].ConflictReason)
	assert.True(t, versions[1].ReconstructionOK)
	assert.Equal(t, 2, versions[1].Version)
	assert.Equal(t, "b = 1\n", versions[1].Content)
}

func TestReplayAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReplayAll(ctx, map[string][]model.EditOp{"a.py": {write("s", 1, "x")}}, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCountLines(t *testing.T) {
	cases := map[string]int{
		"":         0,
		"a":        1,
		"a\n":      1,
		"a\nb":     2,
		"a\nb\n":   2,
		"\n\n":     2,
		"a\r\nb\n": 2,
	}
	for in, want := range cases {
		assert.Equal(t, want, CountLines(in), "CountLines(%q)", in)
	}
}
