// Package main provides the aisession CLI for recovering files and mining
// conversations from Claude Code session logs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ahundt/ai-session-tools/internal/config"
	"github.com/ahundt/ai-session-tools/internal/index"
	"github.com/ahundt/ai-session-tools/internal/store"

	"github.com/spf13/cobra"
)

var version = "dev"

// app carries the global flags and the state derived from them.
type app struct {
	projectsDir string
	configPath  string
	workers     int
	format      string
	noHeader    bool
	verbose     bool
	quiet       bool

	cfg    config.Config
	logger *slog.Logger
	stderr io.Writer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aisession: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "aisession",
		Short:         "Recover files and search conversations in Claude Code session logs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.projectsDir, "projects-dir", "", "Claude Code projects directory (env: AI_SESSION_TOOLS_PROJECTS, default: ~/.claude/projects)")
	flags.StringVar(&a.configPath, "config", "", "config file (env: AI_SESSION_TOOLS_CONFIG)")
	flags.IntVar(&a.workers, "workers", 0, "parallel workers for loading and replay (0 means GOMAXPROCS)")
	flags.StringVar(&a.format, "format", "table", "output format: table, plain, json, jsonl, csv, or markdown")
	flags.BoolVar(&a.noHeader, "no-header", false, "omit the header row")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log progress to stderr")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "suppress warnings")

	root.AddCommand(
		newSessionsCmd(a),
		newFilesCmd(a),
		newVersionsCmd(a),
		newExtractCmd(a),
		newMessagesCmd(a),
		newCrossRefCmd(a),
		newCorrectionsCmd(a),
		newPlanningCmd(a),
		newStatsCmd(a),
		newAnalyzeCmd(a),
		newTimelineCmd(a),
		newExportCmd(a),
		newViewCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.verbose && a.quiet {
		return errors.New("--verbose and --quiet cannot be used together")
	}
	a.stderr = cmd.ErrOrStderr()

	level := slog.LevelError
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.projectsDir != "" {
		cfg.ProjectsDir = a.projectsDir
	}
	if a.workers > 0 {
		cfg.Workers = a.workers
	}
	a.cfg = cfg
	return nil
}

// loadIndex ingests every session below the projects directory and builds
// the index. Sessions that could not be read are reported as warnings.
func (a *app) loadIndex(ctx context.Context) (*index.Index, error) {
	start := time.Now()
	corpus, err := store.Load(ctx, store.Options{
		Root:    a.cfg.ProjectsDir,
		Workers: a.cfg.Workers,
		Logger:  a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.warn(corpus.Warnings...)

	ix, err := index.FromCorpus(ctx, corpus, a.cfg.Workers)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("index built",
		"sessions", len(corpus.Logs),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return ix, nil
}

func (a *app) warn(errs ...error) {
	if a.quiet {
		return
	}
	for _, err := range errs {
		fmt.Fprintf(a.stderr, "warning: %v\n", err) //nolint:errcheck
	}
}

func (a *app) includeHeader() bool {
	return !a.noHeader
}

// timeRange holds the --after/--before flag values of a command.
type timeRange struct {
	after  string
	before string
}

func (r *timeRange) register(cmd *cobra.Command, what string) {
	cmd.Flags().StringVar(&r.after, "after", "", fmt.Sprintf("include %s on/after this time (RFC3339 or YYYY-MM-DD)", what))
	cmd.Flags().StringVar(&r.before, "before", "", fmt.Sprintf("include %s on/before this time (RFC3339 or YYYY-MM-DD)", what))
}

func (r timeRange) parse() (after, before time.Time, err error) {
	if after, err = parseTime("--after", r.after, false); err != nil {
		return
	}
	before, err = parseTime("--before", r.before, true)
	return
}

// parseTime accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseTime(flag, value string, endOfDay bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: expected RFC3339 or YYYY-MM-DD", flag, value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
