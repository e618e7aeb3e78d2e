// Package extract writes reconstructed file versions to disk.
package extract

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ahundt/ai-session-tools/internal/index"
	"github.com/ahundt/ai-session-tools/internal/model"
)

// ErrNoVersions is returned when there is nothing to extract.
var ErrNoVersions = errors.New("no versions to extract")

// Options controls where and how versions are written.
type Options struct {
	OutputDir string
	All       bool // every version instead of the final one
	DryRun    bool
	Logger    *slog.Logger
}

// Result lists the planned (dry run) or written paths. Warnings holds the
// per-version write failures of an All extraction.
type Result struct {
	Paths    []string
	Warnings []error
}

// VersionFileName is the name used for one version in an All extraction.
func VersionFileName(v model.FileVersion) string {
	return fmt.Sprintf("v%06d_line_%d.txt", v.Version, v.LineCount)
}

// Write extracts versions of a single path. The final version is written to
// <out>/<name>; with All set, each version goes to
// <out>/<name>/v000001_line_N.txt.
func Write(versions []model.FileVersion, opts Options) (Result, error) {
	if len(versions) == 0 {
		return Result{}, ErrNoVersions
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	out := opts.OutputDir
	if out == "" {
		out = "."
	}
	name := index.BaseName(versions[0].Path)

	if !opts.All {
		final := versions[len(versions)-1]
		target := filepath.Join(out, name)
		res := Result{Paths: []string{target}}
		if opts.DryRun {
			return res, nil
		}
		if err := os.MkdirAll(out, 0o755); err != nil {
			return Result{}, fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(target, []byte(final.Content), 0o644); err != nil {
			return Result{}, fmt.Errorf("write %s: %w", target, err)
		}
		logger.Debug("extracted final version", "path", final.Path, "version", final.Version, "target", target)
		return res, nil
	}

	dir := filepath.Join(out, name)
	var res Result
	if !opts.DryRun {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create output dir: %w", err)
		}
	}
	for _, v := range versions {
		target := filepath.Join(dir, VersionFileName(v))
		if !opts.DryRun {
			if err := os.WriteFile(target, []byte(v.Content), 0o644); err != nil {
				res.Warnings = append(res.Warnings, fmt.Errorf("write %s: %w", target, err))
				continue
			}
		}
		res.Paths = append(res.Paths, target)
	}
	logger.Debug("extracted versions", "path", versions[0].Path, "written", len(res.Paths), "failed", len(res.Warnings))
	return res, nil
}
