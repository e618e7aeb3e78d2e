package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ahundt/ai-session-tools/internal/format"
	"github.com/ahundt/ai-session-tools/internal/view"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		output string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session transcript as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			log, err := ix.Session(args[0])
			if err != nil {
				return err
			}
			msgs, err := ix.Messages(log.Session.ID)
			if err != nil {
				return err
			}

			if output == "" {
				return format.ExportMarkdown(cmd.OutOrStdout(), log.Session, msgs)
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "would write %s (%d messages)\n", output, len(msgs)) //nolint:errcheck
				return nil
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := format.ExportMarkdown(f, log.Session, msgs); err != nil {
				f.Close() //nolint:errcheck
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the target without writing")
	return cmd
}

func newViewCmd(a *app) *cobra.Command {
	var (
		roleArg      string
		allFilter    bool
		wrap         int
		maxEvents    int
		formatFlag   string
		forceColor   bool
		forceNoColor bool
	)

	cmd := &cobra.Command{
		Use:   "view <session-id>",
		Short: "Render a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}
			if allFilter && roleArg != "" {
				return errors.New("--all cannot be used with --role")
			}

			ix, err := a.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			log, err := ix.Session(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			outFile, _ := out.(*os.File)
			return view.Run(view.Options{
				Log:          log,
				Format:       formatFlag,
				Wrap:         wrap,
				MaxEvents:    maxEvents,
				RoleArg:      roleArg,
				AllFilter:    allFilter,
				ForceColor:   forceColor,
				ForceNoColor: forceNoColor,
				Out:          out,
				OutFile:      outFile,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&roleArg, "role", "R", "", "comma-separated roles: user, assistant, tool, result, system (default: user,assistant; use 'all' for every role)")
	flags.BoolVar(&allFilter, "all", false, "show every event (overrides --role)")
	flags.IntVar(&wrap, "wrap", 0, "wrap message body at the given column width")
	flags.IntVar(&maxEvents, "max", 0, "show only the most recent N events (0 means no limit)")
	flags.StringVar(&formatFlag, "view-format", "text", "transcript format: text, chat, json, or raw")
	flags.BoolVar(&forceColor, "color", false, "force-enable ANSI colors even when stdout is not a TTY")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable ANSI colors regardless of terminal detection")

	return cmd
}
