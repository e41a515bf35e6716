package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlinsight/internal/cli/config"
	"github.com/leapstack-labs/sqlinsight/internal/cli/output"
	"github.com/leapstack-labs/sqlinsight/internal/extract"
	"github.com/leapstack-labs/sqlinsight/internal/scan"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch <location>",
		Short: "Scan a directory and record SQL files as they change",
		Long: `Scan a directory tree, then keep watching it and record every SQL file
that is created or written until interrupted.

Every change adds new rows; rows recorded earlier are never updated.
Files recorded while watching are tagged with the initial scan's run.`,
		Example: `  # Watch a project, recording into today's database
  sqlinsight watch ./queries

  # Only record changes, without an initial scan
  sqlinsight watch ./queries --skip-initial`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], skipInitial)
		},
	}

	addScanFlags(cmd)
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Do not scan existing files before watching")

	return cmd
}

func runWatch(cmd *cobra.Command, location string, skipInitial bool) error {
	cfg := getConfig()
	if err := config.ValidateLocation(location); err != nil {
		return err
	}
	enc, err := cfg.ResolveEncoding()
	if err != nil {
		return err
	}

	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cctx.Renderer
	mode := r.EffectiveMode()
	scanner := cctx.Scanner(enc)

	var runID string
	if !skipInitial {
		summary, err := scanner.Run(cmd.Context(), location)
		if err != nil {
			return err
		}
		runID = summary.RunID
		out := buildScanOutput(summary, cctx.DatabaseName(), false)
		switch mode {
		case output.ModeJSON:
			err = r.JSON(out)
		case output.ModeYAML:
			err = r.YAML(out)
		case output.ModeMarkdown:
			err = scanMarkdown(r, out)
		default:
			err = scanText(r, out)
		}
		if err != nil {
			return err
		}
		if summary.Interrupted {
			return nil
		}
	}

	return scanner.Watch(cmd.Context(), location, scan.WatchOptions{
		RunID: runID,
		OnReady: func() {
			if mode == output.ModeText || mode == output.ModeMarkdown {
				r.Println("")
				r.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", location))
			}
		},
		OnFile: func(path string, report *extract.FileReport, err error) {
			watchEvent(r, mode, location, path, report, err)
		},
	})
}

// watchEvent reports one processed file. JSON mode emits one object per line.
func watchEvent(r *output.Renderer, mode output.Mode, location, path string, report *extract.FileReport, err error) {
	switch mode {
	case output.ModeJSON, output.ModeYAML:
		ev := output.WatchEvent{Path: path}
		if err != nil {
			ev.Error = err.Error()
		} else {
			ev.FileID = report.FileID
			ev.Statements = report.Statements
			ev.Units = report.Units
			ev.Errors = len(report.Errors)
		}
		if mode == output.ModeYAML {
			_ = r.YAML([]output.WatchEvent{ev})
			return
		}
		_ = r.JSONLine(ev)
	default:
		name := relPath(location, path)
		switch {
		case err != nil:
			r.StatusLine(name, "error", err.Error())
		case len(report.Errors) > 0:
			r.StatusLine(name, "warning", fmt.Sprintf("%d statements, %d units, %d errors", report.Statements, report.Units, len(report.Errors)))
		default:
			r.StatusLine(name, "success", fmt.Sprintf("%d statements, %d units", report.Statements, report.Units))
		}
	}
}
