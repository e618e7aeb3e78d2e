// Package history replays merged edit operations into per-file version
// histories.
package history

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"github.com/ahundt/ai-session-tools/internal/model"
	"golang.org/x/sync/errgroup"
)

// Conflict reasons recorded on versions that could not be replayed.
const (
	ReasonNoBase    = "no base content"
	ReasonNotFound  = "old_text not found"
	ReasonAmbiguous = "ambiguous match"
	ReasonEmptyOld  = "empty old_text"
)

// Replay runs ops, already in global order, against an initially absent file
// and returns one version per op. Versions are numbered densely from 1; an op
// that cannot be applied still produces a version carrying the unchanged
// content and a conflict reason.
func Replay(path string, ops []model.EditOp) []model.FileVersion {
	versions := make([]model.FileVersion, 0, len(ops))

	var (
		content   string
		present   bool
		prevLines int
	)
	for i, op := range ops {
		v := model.FileVersion{
			Path:             path,
			Version:          i + 1,
			Timestamp:        op.Timestamp,
			SessionID:        op.SessionID,
			Tool:             op.Tool,
			ToolUseID:        op.ToolUseID,
			Snippet:          op.Snippet(),
			ReconstructionOK: true,
		}

		switch op.Kind {
		case model.EditWrite:
			content = op.Content
			present = true
		case model.EditPatch:
			next, reason := applyEdit(content, present, op)
			if reason != "" {
				v.ReconstructionOK = false
				v.ConflictReason = reason
			} else {
				content = next
			}
		default:
			v.ReconstructionOK = false
			v.ConflictReason = "unknown operation " + string(op.Kind)
		}

		v.Content = content
		v.LineCount = CountLines(content)
		if i > 0 {
			v.LineDelta = v.LineCount - prevLines
		}
		prevLines = v.LineCount
		versions = append(versions, v)
	}
	return versions
}

// applyEdit returns the edited content, or a non-empty conflict reason.
func applyEdit(content string, present bool, op model.EditOp) (string, string) {
	if !present {
		return "", ReasonNoBase
	}
	if op.OldText == "" {
		return "", ReasonEmptyOld
	}

	switch n := strings.Count(content, op.OldText); {
	case n == 0:
		return "", ReasonNotFound
	case op.ReplaceAll:
		return strings.ReplaceAll(content, op.OldText, op.NewText), ""
	case n > 1:
		return "", ReasonAmbiguous
	default:
		return strings.Replace(content, op.OldText, op.NewText, 1), ""
	}
}

// ReplayAll replays every path's stream. Paths are independent and run in
// parallel, bounded by workers (GOMAXPROCS when workers <= 0).
func ReplayAll(ctx context.Context, streams map[string][]model.EditOp, workers int) (map[string][]model.FileVersion, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	paths := make([]string, 0, len(streams))
	for path := range streams {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	results := make([][]model.FileVersion, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = Replay(path, streams[path])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]model.FileVersion, len(paths))
	for i, path := range paths {
		out[path] = results[i]
	}
	return out, nil
}

// CountLines counts newline-terminated lines, plus a trailing partial line.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
