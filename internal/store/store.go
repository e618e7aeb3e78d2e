// Package store enumerates session logs under a projects directory and loads
// them concurrently.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/ahundt/ai-session-tools/internal/claude"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSessionNotFound is returned when no session matches an ID or prefix.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAmbiguousSession is returned when a prefix matches several sessions.
	ErrAmbiguousSession = errors.New("ambiguous session id")
)

// Options controls how sessions are discovered and loaded.
type Options struct {
	Root    string
	Project string // case-insensitive substring of the project directory name
	Workers int
	Logger  *slog.Logger
}

// Corpus holds every successfully ingested session plus non-fatal warnings.
type Corpus struct {
	Logs     []*claude.SessionLog
	Warnings []error
}

type sessionFile struct {
	path       string
	projectDir string
}

// Load ingests every *.jsonl file below Root. Files directly inside a
// project directory and any nested logs below it are attributed to that
// project. A session that cannot be read is reported in Warnings; only a
// failure to read Root itself is returned as an error.
func Load(ctx context.Context, opts Options) (*Corpus, error) {
	if opts.Root == "" {
		return nil, errors.New("root directory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	files, warnings, err := discover(opts.Root, opts.Project)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	logs := make([]*claude.SessionLog, len(files))
	failures := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log, err := claude.IngestFile(f.path, f.projectDir)
			if err != nil {
				failures[i] = fmt.Errorf("ingest %s: %w", f.path, err)
				logger.Warn("session skipped", "path", f.path, "err", err)
				return nil
			}
			logger.Debug("session ingested",
				"session", log.Session.ID,
				"events", len(log.Events),
				"edits", len(log.Edits),
				"malformed", log.Session.MalformedLines,
				"invalid_timestamps", log.Session.InvalidTimestamps)
			logs[i] = log
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	corpus := &Corpus{Warnings: warnings}
	for i := range files {
		if failures[i] != nil {
			corpus.Warnings = append(corpus.Warnings, failures[i])
			continue
		}
		corpus.Logs = append(corpus.Logs, logs[i])
	}

	sort.SliceStable(corpus.Logs, func(i, j int) bool {
		a, b := corpus.Logs[i].Session, corpus.Logs[j].Session
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		return a.ID < b.ID
	})

	return corpus, nil
}

func discover(root, project string) ([]sessionFile, []error, error) {
	var files []sessionFile
	var warnings []error
	project = strings.ToLower(project)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			warnings = append(warnings, fmt.Errorf("walk %s: %w", path, walkErr))
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}

		projectDir := projectOf(root, path)
		if project != "" && !strings.Contains(strings.ToLower(projectDir), project) {
			return nil
		}
		files = append(files, sessionFile{path: path, projectDir: projectDir})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("read projects directory %s: %w", root, err)
	}
	return files, warnings, nil
}

// projectOf returns the first path element of path below root, or "" for
// logs stored directly in root.
func projectOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

// FindSession returns the session whose ID equals id, or the single session
// whose ID starts with id.
func FindSession(corpus *Corpus, id string) (*claude.SessionLog, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}

	var matches []*claude.SessionLog
	for _, log := range corpus.Logs {
		if log.Session.ID == id {
			return log, nil
		}
		if strings.HasPrefix(log.Session.ID, id) {
			matches = append(matches, log)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.Session.ID)
		}
		return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguousSession, id, strings.Join(ids, ", "))
	}
}
