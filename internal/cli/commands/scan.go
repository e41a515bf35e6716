package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlinsight/internal/cli/config"
	"github.com/leapstack-labs/sqlinsight/internal/cli/output"
	"github.com/leapstack-labs/sqlinsight/internal/scan"
)

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scan <location>",
		Short: "Record the token trees of SQL files",
		Long: `Scan a directory tree for SQL files and record every statement's
token tree into the metadata store.

Each file becomes a row in "files", each statement a row in "statements"
and each significant token a row in "units". Whitespace, newlines and
punctuation are not recorded. A statement that fails to record leaves no
units behind and does not stop the scan.

Output adapts to environment:
  - Terminal: Styled summary with a per-file table
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Scan the current project
  sqlinsight scan ./queries

  # Scan Latin-1 files into a specific database
  sqlinsight scan ./legacy -e latin-1 --database meta.db

  # Check what would be recorded without writing anything
  sqlinsight scan ./queries --dry-run --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], dryRun)
		},
	}

	addScanFlags(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Process files without writing to the database")

	return cmd
}

// addScanFlags registers the flags shared by scan and watch.
// Their values reach the config through the flag provider.
func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("encoding", "e", "", "Encoding of the SQL files (default utf-8)")
	f.Int("workers", 0, "Number of files processed in parallel (default 1)")
	f.String("commit-policy", "", "Unit commit boundary: statement|group|unit")
	f.String("decode-errors", "", "Handling of undecodable bytes: replace|ignore")
	f.String("database", "", "Metadata database path or connection string")
	f.String("driver", "", "Metadata database driver: sqlite|postgres")
	f.StringSlice("extensions", nil, "File extensions to scan (default .sql)")

	_ = cmd.RegisterFlagCompletionFunc("commit-policy", fixedCompletion("statement", "group", "unit"))
	_ = cmd.RegisterFlagCompletionFunc("decode-errors", fixedCompletion("replace", "ignore"))
	_ = cmd.RegisterFlagCompletionFunc("driver", fixedCompletion("sqlite", "postgres"))
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

func runScan(cmd *cobra.Command, location string, dryRun bool) error {
	cfg := getConfig()
	if err := config.ValidateLocation(location); err != nil {
		return err
	}
	enc, err := cfg.ResolveEncoding()
	if err != nil {
		return err
	}

	var cctx *CommandContext
	if dryRun {
		cctx = NewCommandContextWithoutStore(cmd)
	} else {
		var cleanup func()
		cctx, cleanup, err = NewCommandContext(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	summary, err := cctx.Scanner(enc).Run(cmd.Context(), location)
	if err != nil {
		return err
	}

	out := buildScanOutput(summary, cctx.DatabaseName(), dryRun)
	r := cctx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeYAML:
		return r.YAML(out)
	case output.ModeMarkdown:
		return scanMarkdown(r, out)
	default:
		return scanText(r, out)
	}
}

func buildScanOutput(s *scan.Summary, database string, dryRun bool) output.ScanOutput {
	out := output.ScanOutput{
		RunID:    s.RunID,
		Location: s.Location,
		Database: database,
		DryRun:   dryRun,
		Summary: output.ScanSummary{
			Files:       s.Files,
			FilesFailed: s.FilesFailed,
			Statements:  s.Statements,
			Skipped:     s.Skipped,
			Units:       s.Units,
			Errors:      len(s.Failures),
			Interrupted: s.Interrupted,
			DurationMS:  s.Duration.Milliseconds(),
		},
		Files: make([]output.ScanFile, 0, len(s.Reports)),
	}
	for _, rep := range s.Reports {
		out.Files = append(out.Files, output.ScanFile{
			Path:       rep.Path,
			FileID:     rep.FileID,
			Statements: rep.Statements,
			Skipped:    rep.Skipped,
			Units:      rep.Units,
			Errors:     len(rep.Errors),
		})
	}
	for _, f := range s.Failures {
		out.Failures = append(out.Failures, output.ScanFailure{Path: f.Path, Type: f.Type, Message: f.Message})
	}
	return out
}

// relPath shortens path for display; it falls back to path when it is not
// under base.
func relPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func fileRows(out output.ScanOutput) [][]string {
	rows := make([][]string, 0, len(out.Files))
	for _, f := range out.Files {
		rows = append(rows, []string{
			relPath(out.Location, f.Path),
			strconv.Itoa(f.Statements),
			strconv.Itoa(f.Skipped),
			strconv.Itoa(f.Units),
			strconv.Itoa(f.Errors),
		})
	}
	return rows
}

var fileHeader = []string{"Path", "Statements", "Skipped", "Units", "Errors"}

// scanText outputs scan results in styled text format.
func scanText(r *output.Renderer, out output.ScanOutput) error {
	s := out.Summary
	msg := fmt.Sprintf("Recorded %d files, %d statements, %d units", s.Files, s.Statements, s.Units)
	if out.DryRun {
		msg = fmt.Sprintf("Processed %d files, %d statements, %d units (dry run)", s.Files, s.Statements, s.Units)
	}
	if s.Errors > 0 {
		r.Warning(fmt.Sprintf("%s with %d errors", msg, s.Errors))
	} else {
		r.Success(msg)
	}
	if out.Database != "" {
		r.Muted(fmt.Sprintf("Database: %s (run %s)", out.Database, out.RunID))
	}
	if s.Interrupted {
		r.Warning("Scan interrupted; remaining files were not processed")
	}

	if len(out.Files) > 0 {
		r.Println("")
		r.Table(fileHeader, fileRows(out))
	}

	if len(out.Failures) > 0 {
		r.Println("")
		r.Header(2, "Failures")
		for _, f := range out.Failures {
			r.StatusLine(relPath(out.Location, f.Path), "error", f.Message)
		}
	}

	r.Println("")
	r.Muted(fmt.Sprintf("Completed in %dms", s.DurationMS))
	return nil
}

// scanMarkdown outputs scan results in markdown format.
func scanMarkdown(r *output.Renderer, out output.ScanOutput) error {
	s := out.Summary
	r.Println(output.FormatHeader(1, "Scan Results"))
	r.Println("")
	r.Println(output.FormatKeyValue("Location", out.Location))
	if out.Database != "" {
		r.Println(output.FormatKeyValue("Database", out.Database))
		r.Println(output.FormatKeyValue("Run", out.RunID))
	}
	if out.DryRun {
		r.Println(output.FormatKeyValue("Dry Run", "true"))
	}
	r.Println(output.FormatKeyValue("Files", fmt.Sprintf("%d (%d failed)", s.Files, s.FilesFailed)))
	r.Println(output.FormatKeyValue("Statements", fmt.Sprintf("%d (%d skipped)", s.Statements, s.Skipped)))
	r.Println(output.FormatKeyValue("Units", strconv.Itoa(s.Units)))
	r.Println(output.FormatKeyValue("Errors", strconv.Itoa(s.Errors)))
	if s.Interrupted {
		r.Println(output.FormatKeyValue("Interrupted", "true"))
	}
	r.Println(output.FormatKeyValue("Duration", fmt.Sprintf("%dms", s.DurationMS)))

	if len(out.Files) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Files"))
		r.Println("")
		r.Printf("%s", output.FormatTable(fileHeader, fileRows(out)))
	}

	if len(out.Failures) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Failures"))
		r.Println("")
		for _, f := range out.Failures {
			r.Printf("- `%s` (%s): %s\n", relPath(out.Location, f.Path), f.Type, f.Message)
		}
	}

	return nil
}
