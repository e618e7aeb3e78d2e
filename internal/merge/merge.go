// Package merge combines per-session edit streams into one chronological
// stream per file path.
//
// The global order is defined by Less: timestamp, then session start time,
// then session ID, then position in the session log, then position inside a
// multi-edit call. It is total, so merging the same inputs always yields the
// same sequence.
package merge

import (
	"container/heap"
	"sort"
	"time"

	"github.com/ahundt/ai-session-tools/internal/model"
)

// SessionOps is one session's edit operations in log order.
type SessionOps struct {
	SessionID string
	StartedAt time.Time
	Ops       []model.EditOp
}

// Key is the sort key of one operation in the global order.
type Key struct {
	Timestamp    time.Time
	SessionStart time.Time
	SessionID    string
	Position     int
	SubIndex     int
}

// KeyOf builds the key for op issued by a session that started at start.
func KeyOf(op model.EditOp, start time.Time) Key {
	return Key{
		Timestamp:    op.Timestamp,
		SessionStart: start,
		SessionID:    op.SessionID,
		Position:     op.Position,
		SubIndex:     op.SubIndex,
	}
}

// Less reports whether a sorts before b.
func Less(a, b Key) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if !a.SessionStart.Equal(b.SessionStart) {
		return a.SessionStart.Before(b.SessionStart)
	}
	if a.SessionID != b.SessionID {
		return a.SessionID < b.SessionID
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.SubIndex < b.SubIndex
}

// ByPath groups every session's operations by path and merges each group.
// Sessions that never touch a path do not take part in its merge.
func ByPath(sessions []SessionOps) map[string][]model.EditOp {
	perPath := make(map[string][]SessionOps)
	for _, s := range sessions {
		grouped := make(map[string][]model.EditOp)
		var order []string
		for _, op := range s.Ops {
			if _, seen := grouped[op.Path]; !seen {
				order = append(order, op.Path)
			}
			grouped[op.Path] = append(grouped[op.Path], op)
		}
		for _, path := range order {
			perPath[path] = append(perPath[path], SessionOps{
				SessionID: s.SessionID,
				StartedAt: s.StartedAt,
				Ops:       grouped[path],
			})
		}
	}

	merged := make(map[string][]model.EditOp, len(perPath))
	for path, streams := range perPath {
		merged[path] = Streams(streams)
	}
	return merged
}

// Streams performs a k-way merge of session streams. Each stream is first
// ordered by its own timestamps, so an operation logged after another but
// stamped earlier is replayed first.
//
// A resumed session repeats the records of the session it continues, so an
// operation with the same tool use ID and sub-index is kept only the first
// time it appears in the merged order. Operations without an ID are never
// dropped.
func Streams(sessions []SessionOps) []model.EditOp {
	h := make(cursorHeap, 0, len(sessions))
	total := 0
	for _, s := range sessions {
		if len(s.Ops) == 0 {
			continue
		}
		ops := make([]model.EditOp, len(s.Ops))
		copy(ops, s.Ops)
		sort.SliceStable(ops, func(i, j int) bool {
			return Less(KeyOf(ops[i], s.StartedAt), KeyOf(ops[j], s.StartedAt))
		})
		h = append(h, &cursor{start: s.StartedAt, ops: ops})
		total += len(ops)
	}
	heap.Init(&h)

	out := make([]model.EditOp, 0, total)
	seen := make(map[opID]bool)
	for h.Len() > 0 {
		c := h[0]
		o := c.ops[c.next]
		switch id := (opID{o.ToolUseID, o.SubIndex}); {
		case o.ToolUseID == "":
			out = append(out, o)
		case !seen[id]:
			seen[id] = true
			out = append(out, o)
		}
		c.next++
		if c.next == len(c.ops) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return out
}

type opID struct {
	toolUseID string
	subIndex  int
}

type cursor struct {
	start time.Time
	ops   []model.EditOp
	next  int
}

func (c *cursor) key() Key {
	return KeyOf(c.ops[c.next], c.start)
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return Less(h[i].key(), h[j].key()) }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
