package index

import (
	"context"

	"github.com/ahundt/ai-session-tools/internal/history"
	"github.com/ahundt/ai-session-tools/internal/merge"
	"github.com/ahundt/ai-session-tools/internal/store"
)

// FromCorpus merges every session's edits per path, replays them, and builds
// the index over the result.
func FromCorpus(ctx context.Context, corpus *store.Corpus, workers int) (*Index, error) {
	sessions := make([]merge.SessionOps, 0, len(corpus.Logs))
	for _, log := range corpus.Logs {
		sessions = append(sessions, merge.SessionOps{
			SessionID: log.Session.ID,
			StartedAt: log.Session.StartedAt,
			Ops:       log.Edits,
		})
	}

	versions, err := history.ReplayAll(ctx, merge.ByPath(sessions), workers)
	if err != nil {
		return nil, err
	}
	return Build(corpus, versions), nil
}
