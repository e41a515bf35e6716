package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqlinsight/internal/extract"
	"github.com/leapstack-labs/sqlinsight/internal/store"
	"github.com/leapstack-labs/sqlinsight/internal/textenc"
)

// RunRecorder records scan runs. *store.Store implements it.
type RunRecorder interface {
	StartRun(ctx context.Context, location, encoding string) (*store.Run, error)
	CompleteRun(ctx context.Context, id string, stats store.RunStats) error
}

// Config configures a Scanner.
type Config struct {
	Extensions   []string
	Encoding     textenc.Encoding
	DecodeErrors textenc.Policy
	CommitPolicy extract.CommitPolicy
	// Workers above 1 process files in parallel.
	Workers int
	Logger  *slog.Logger
}

// Scanner drives file processing over a directory tree.
type Scanner struct {
	sink   extract.Sink
	runs   RunRecorder
	cfg    Config
	logger *slog.Logger
}

// New creates a Scanner. runs may be nil, in which case no run row is kept
// and file rows are left untagged.
func New(sink extract.Sink, runs RunRecorder, cfg Config) *Scanner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{sink: sink, runs: runs, cfg: cfg, logger: logger}
}

// Failure is a non-fatal error collected during a scan.
type Failure struct {
	Path    string `json:"path" yaml:"path"`
	Type    string `json:"type" yaml:"type"` // "file" or "statement"
	Message string `json:"message" yaml:"message"`
}

// Summary contains statistics about a scan.
type Summary struct {
	RunID       string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Location    string        `json:"location" yaml:"location"`
	Files       int           `json:"files" yaml:"files"`
	FilesFailed int           `json:"files_failed" yaml:"files_failed"`
	Statements  int           `json:"statements" yaml:"statements"`
	Skipped     int           `json:"skipped" yaml:"skipped"`
	Units       int           `json:"units" yaml:"units"`
	Failures    []Failure     `json:"failures,omitempty" yaml:"failures,omitempty"`
	Interrupted bool          `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`

	Reports []*extract.FileReport `json:"reports,omitempty" yaml:"reports,omitempty"`
}

// HasErrors returns true if any file or statement failed.
func (s *Summary) HasErrors() bool {
	return len(s.Failures) > 0
}

// String returns a one-line human-readable summary.
func (s *Summary) String() string {
	return fmt.Sprintf(
		"Files: %d (%d failed) | Statements: %d (%d skipped) | Units: %d | Errors: %d | Duration: %s",
		s.Files, s.FilesFailed, s.Statements, s.Skipped, s.Units, len(s.Failures),
		s.Duration.Round(time.Millisecond),
	)
}

func (s *Summary) add(r fileResult) {
	if !r.done {
		return
	}
	if r.err != nil {
		s.FilesFailed++
		s.Failures = append(s.Failures, Failure{Path: r.path, Type: "file", Message: r.err.Error()})
		return
	}
	s.Files++
	s.Statements += r.report.Statements
	s.Skipped += r.report.Skipped
	s.Units += r.report.Units
	s.Reports = append(s.Reports, r.report)
	for _, err := range r.report.Errors {
		s.Failures = append(s.Failures, Failure{Path: r.report.Path, Type: "statement", Message: err.Error()})
	}
}

type fileResult struct {
	path   string
	report *extract.FileReport
	err    error
	done   bool
}

// Run scans root and records every matching file. Per-file and
// per-statement failures are collected in the summary; an error is returned
// only when the scan cannot start. Cancelling ctx stops the scan between
// files and marks the summary interrupted.
func (s *Scanner) Run(ctx context.Context, root string) (*Summary, error) {
	start := time.Now()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	paths, err := Discover(abs, s.cfg.Extensions, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", abs, err)
	}
	s.logger.Info("discovered files", "location", abs, "count", len(paths))

	summary := &Summary{Location: abs}
	if s.runs != nil {
		run, err := s.runs.StartRun(ctx, abs, s.cfg.Encoding.String())
		if err != nil {
			return nil, err
		}
		summary.RunID = run.ID
	}

	proc := s.processor(summary.RunID)
	results := make([]fileResult, len(paths))

	if s.cfg.Workers <= 1 {
		for i, path := range paths {
			if ctx.Err() != nil {
				break
			}
			results[i] = s.process(ctx, proc, path)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Workers)
		for i, path := range paths {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				results[i] = s.process(gctx, proc, path)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, r := range results {
		summary.add(r)
	}
	summary.Interrupted = errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	summary.Duration = time.Since(start)

	if s.runs != nil {
		stats := store.RunStats{
			Files:      summary.Files,
			Statements: summary.Statements,
			Units:      summary.Units,
			Errors:     len(summary.Failures),
		}
		if err := s.runs.CompleteRun(context.WithoutCancel(ctx), summary.RunID, stats); err != nil {
			s.logger.Warn("failed to complete run", "run", summary.RunID, "error", err)
		}
	}

	s.logger.Info("scan finished", "summary", summary.String())
	return summary, nil
}

func (s *Scanner) processor(runID string) *extract.Processor {
	return extract.NewProcessor(s.sink, extract.ProcessorOptions{
		Policy:       s.cfg.CommitPolicy,
		DecodeErrors: s.cfg.DecodeErrors,
		RunID:        runID,
		Logger:       s.logger,
	})
}

func (s *Scanner) process(ctx context.Context, proc *extract.Processor, path string) fileResult {
	report, err := proc.ProcessFile(ctx, path, s.cfg.Encoding)
	return fileResult{path: path, report: report, err: err, done: true}
}
