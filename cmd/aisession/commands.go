package main

import (
	"fmt"
	"os"

	"github.com/ahundt/ai-session-tools/internal/analyze"
	"github.com/ahundt/ai-session-tools/internal/crossref"
	"github.com/ahundt/ai-session-tools/internal/extract"
	"github.com/ahundt/ai-session-tools/internal/format"
	"github.com/ahundt/ai-session-tools/internal/index"
	"github.com/ahundt/ai-session-tools/internal/model"

	"github.com/spf13/cobra"
)

func newSessionsCmd(a *app) *cobra.Command {
	var (
		project string
		limit   int
		period  timeRange
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			after, before, err := period.parse()
			if err != nil {
				return err
			}
			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}

			sessions := ix.Sessions(index.SessionQuery{Project: project, After: after, Before: before})
			if limit > 0 && len(sessions) > limit {
				sessions = sessions[:limit]
			}
			return format.WriteSessions(cmd.OutOrStdout(), sessions, a.includeHeader(), a.format)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "filter by project directory substring")
	cmd.Flags().IntVar(&limit, "limit", 0, "limit number of sessions returned (0 means no limit)")
	period.register(cmd, "sessions starting")
	return cmd
}

func newFilesCmd(a *app) *cobra.Command {
	var (
		spec           index.FilterSpec
		period         timeRange
		limit          int
		includeSession []string
		excludeSession []string
	)

	cmd := &cobra.Command{
		Use:   "files [pattern]",
		Short: "Search recovered files by name, edit count, extension, date, or session",
		Long: "Search recovered files. The pattern is a glob on the file name when it\n" +
			"contains *, ?, [ or {, and a case-insensitive substring otherwise.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				spec.Pattern = args[0]
			}
			var err error
			if spec.After, spec.Before, err = period.parse(); err != nil {
				return err
			}
			spec.IncludeSessions = includeSession
			spec.ExcludeSessions = excludeSession

			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			files, err := ix.Files(spec)
			if err != nil {
				return err
			}
			if limit > 0 && len(files) > limit {
				files = files[:limit]
			}
			return format.WriteFiles(cmd.OutOrStdout(), files, a.includeHeader(), a.format)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&spec.MinEdits, "min-edits", 0, "minimum number of versions")
	flags.IntVar(&spec.MaxEdits, "max-edits", 0, "maximum number of versions (0 means no limit)")
	flags.IntVar(&spec.MinSize, "min-size", 0, "minimum final size in bytes")
	flags.IntVar(&spec.MaxSize, "max-size", 0, "maximum final size in bytes (0 means no limit)")
	flags.StringSliceVar(&spec.IncludeExtensions, "ext", nil, "only these extensions (repeatable or comma-separated)")
	flags.StringSliceVar(&spec.ExcludeExtensions, "exclude-ext", nil, "drop these extensions; wins over --ext")
	flags.StringSliceVar(&includeSession, "session", nil, "only files touched by these sessions")
	flags.StringSliceVar(&excludeSession, "exclude-session", nil, "drop files touched only by these sessions")
	flags.IntVar(&limit, "limit", 0, "limit number of files returned (0 means no limit)")
	period.register(cmd, "files last modified")
	return cmd
}

func newVersionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <path-or-name>",
		Short: "Show the reconstructed version history of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			versions, err := ix.Versions(args[0])
			if err != nil {
				return err
			}
			return format.WriteVersions(cmd.OutOrStdout(), versions, a.includeHeader(), a.format)
		},
	}
}

func newExtractCmd(a *app) *cobra.Command {
	var (
		all    bool
		dryRun bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "extract <path-or-name>",
		Short: "Write the final version, or every version, of a file to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			versions, err := ix.Versions(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = a.cfg.RecoveryDir
			}

			res, err := extract.Write(versions, extract.Options{
				OutputDir: output,
				All:       all,
				DryRun:    dryRun,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}
			a.warn(res.Warnings...)

			verb := "wrote"
			if dryRun {
				verb = "would write"
			}
			out := cmd.OutOrStdout()
			for _, p := range res.Paths {
				fmt.Fprintf(out, "%s %s\n", verb, p) //nolint:errcheck
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "write every version as v000001_line_N.txt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print target paths without writing")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: recovery_dir from the config)")
	return cmd
}

func newMessagesCmd(a *app) *cobra.Command {
	var (
		q       index.MessageQuery
		msgType string
		period  timeRange
		window  int
	)

	cmd := &cobra.Command{
		Use:   "messages [query]",
		Short: "Search user and assistant messages, or tool calls with --tool",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Query = args[0]
			}
			switch model.MessageType(msgType) {
			case "", model.MessageUser, model.MessageAssistant:
				q.Type = model.MessageType(msgType)
			default:
				return fmt.Errorf("invalid --type value: %s", msgType)
			}
			var err error
			if q.After, q.Before, err = period.parse(); err != nil {
				return err
			}

			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}

			if window > 0 {
				res := ix.SearchContext(q, window)
				if res.Truncated {
					a.warn(fmt.Errorf("results truncated at --limit %d", q.Limit))
				}
				return format.WriteContextMatches(cmd.OutOrStdout(), res.Matches, a.includeHeader(), a.format)
			}

			res := ix.SearchMessages(q)
			if res.Truncated {
				a.warn(fmt.Errorf("results truncated at --limit %d", q.Limit))
			}
			return format.WriteMessages(cmd.OutOrStdout(), res.Messages, a.includeHeader(), a.format)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&msgType, "type", "", "message type: user or assistant")
	flags.StringVar(&q.Tool, "tool", "", "search calls to this tool (their JSON arguments) instead of text")
	flags.StringVar(&q.Project, "project", "", "filter by project directory substring")
	flags.StringVar(&q.Session, "session", "", "filter by session ID prefix")
	flags.IntVar(&q.Limit, "limit", 0, "stop after this many matches (0 means no limit)")
	flags.IntVarP(&window, "context", "C", 0, "show N messages of the same session around each match")
	flags.IntVar(&q.MinLength, "min-length", 0, "only messages longer than N characters")
	period.register(cmd, "messages")
	return cmd
}

func newCrossRefCmd(a *app) *cobra.Command {
	var (
		session string
		content bool
	)

	cmd := &cobra.Command{
		Use:   "crossref <path-or-name> <current-file>",
		Short: "Check which recorded edits of a file survive in its current content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read current file: %w", err)
			}
			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			versions, err := ix.Versions(args[0])
			if err != nil {
				return err
			}

			opts := crossref.Options{SessionID: session, SnippetChars: a.cfg.SnippetChars}
			if content {
				opts.Mode = crossref.ModeContent
			}
			records := crossref.Check(versions, string(current), opts)
			return format.WriteCrossRef(cmd.OutOrStdout(), records, a.includeHeader(), a.format)
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "only edits from sessions with this ID prefix")
	cmd.Flags().BoolVar(&content, "content", false, "test whole reconstructed versions instead of inserted text")
	return cmd
}

func newCorrectionsCmd(a *app) *cobra.Command {
	var (
		q        analyze.CorrectionQuery
		period   timeRange
		patterns []string
	)

	cmd := &cobra.Command{
		Use:   "corrections",
		Short: "Find user messages that correct the assistant",
		Long: "Find user messages that correct the assistant. Each --pattern is\n" +
			"category:keyword; any --pattern replaces the configured and built-in lists.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if q.After, q.Before, err = period.parse(); err != nil {
				return err
			}

			set, err := a.cfg.Corrections()
			if err != nil {
				return err
			}
			if len(patterns) > 0 {
				parsed, err := analyze.ParseCorrectionPatterns(patterns)
				if err != nil {
					return err
				}
				set = analyze.OverrideCorrections(parsed)
			}

			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			msgs := ix.SearchMessages(index.MessageQuery{Type: model.MessageUser}).Messages
			matches := analyze.NewCorrectionDetector(set).Find(msgs, q)
			return format.WriteCorrections(cmd.OutOrStdout(), matches, a.includeHeader(), a.format)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&patterns, "pattern", nil, "category:keyword pattern (repeatable)")
	flags.StringVar(&q.Project, "project", "", "filter by project directory substring")
	flags.IntVar(&q.Limit, "limit", analyze.DefaultCorrectionLimit, "maximum matches returned")
	period.register(cmd, "messages")
	return cmd
}

func newPlanningCmd(a *app) *cobra.Command {
	var (
		q        analyze.PlanningQuery
		period   timeRange
		commands []string
		preset   bool
	)

	cmd := &cobra.Command{
		Use:   "planning",
		Short: "Count slash commands that start user messages",
		Long: "Count slash commands. Without --command or --preset every command is\n" +
			"discovered; with them only the listed commands are counted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if q.After, q.Before, err = period.parse(); err != nil {
				return err
			}

			set := a.cfg.Commands()
			switch {
			case len(commands) > 0:
				set = analyze.Fixed(commands)
			case preset:
				set = analyze.Fixed(analyze.DefaultPlanningCommands)
			}

			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			msgs := ix.SearchMessages(index.MessageQuery{Type: model.MessageUser}).Messages
			counts := analyze.CountCommands(msgs, set, q)
			return format.WritePlanning(cmd.OutOrStdout(), counts, a.includeHeader(), a.format)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&commands, "command", nil, "count only this command (repeatable)")
	flags.BoolVar(&preset, "preset", false, "count the built-in planning commands")
	flags.StringVar(&q.Project, "project", "", "filter by project directory substring")
	period.register(cmd, "messages")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals over every session and recovered file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			return format.WriteStatistics(cmd.OutOrStdout(), ix.Statistics(), a.includeHeader(), a.format)
		},
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <session-id>",
		Short: "Count messages, tool calls, and touched files in one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			analysis, err := ix.AnalyzeSession(args[0])
			if err != nil {
				return err
			}
			return format.WriteAnalysis(cmd.OutOrStdout(), analysis, a.includeHeader(), a.format)
		},
	}
}

func newTimelineCmd(a *app) *cobra.Command {
	var previewChars int

	cmd := &cobra.Command{
		Use:   "timeline <session-id>",
		Short: "Summarize a session turn by turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := ix.Timeline(args[0], previewChars)
			if err != nil {
				return err
			}
			return format.WriteTimeline(cmd.OutOrStdout(), entries, a.includeHeader(), a.format)
		},
	}

	cmd.Flags().IntVar(&previewChars, "preview", 150, "characters of each message to show (0 means all)")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
