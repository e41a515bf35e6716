package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlinsight/internal/textenc"
	"github.com/leapstack-labs/sqlinsight/pkg/sqltree"
)

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	Policy       CommitPolicy
	DecodeErrors textenc.Policy
	// RunID tags every file row; empty leaves rows untagged.
	RunID  string
	Logger *slog.Logger
}

// Processor records whole files.
type Processor struct {
	sink   Sink
	opts   ProcessorOptions
	logger *slog.Logger
}

// NewProcessor creates a Processor writing to sink.
func NewProcessor(sink Sink, opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{sink: sink, opts: opts, logger: logger}
}

// FileReport summarizes one processed file.
type FileReport struct {
	Path       string  `json:"path" yaml:"path"`
	FileID     int64   `json:"file_id" yaml:"file_id"`
	Statements int     `json:"statements" yaml:"statements"`
	Skipped    int     `json:"skipped" yaml:"skipped"`
	Units      int     `json:"units" yaml:"units"`
	Errors     []error `json:"-" yaml:"-"`
}

// ProcessFile reads, decodes and parses the file at path and records it.
//
// The file row is committed as soon as the file has been read, so a file
// without statements still appears in the store. Statement failures are
// collected in the report; the returned error is a *FileError and means
// nothing was recorded.
func (p *Processor) ProcessFile(ctx context.Context, path string, enc textenc.Encoding) (*FileReport, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, p.fileError(path, "resolve", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, p.fileError(abs, "read", err)
	}

	text, err := enc.Decode(data, p.opts.DecodeErrors)
	if err != nil {
		return nil, p.fileError(abs, "decode", err)
	}

	fileID, err := p.createFile(ctx, abs)
	if err != nil {
		return nil, p.fileError(abs, "record", err)
	}

	logger := p.logger.With("file", abs)
	logger.Debug("processing file", "file_id", fileID, "bytes", len(data), "encoding", enc.String())

	report := &FileReport{Path: abs, FileID: fileID}
	flattener := NewFlattener(p.sink, Options{Policy: p.opts.Policy, Logger: logger})
	for _, stmt := range sqltree.Parse(text) {
		res, err := flattener.Flatten(ctx, stmt, fileID)
		report.Units += res.Units
		if res.Skipped {
			report.Skipped++
			continue
		}
		if res.Recorded() {
			report.Statements++
		}
		if err != nil {
			var se *StatementError
			if errors.As(err, &se) {
				se.Path = abs
			}
			report.Errors = append(report.Errors, err)
		}
	}

	logger.Info("file processed",
		"statements", report.Statements,
		"units", report.Units,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (p *Processor) createFile(ctx context.Context, path string) (int64, error) {
	tx, err := p.sink.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := tx.CreateFile(ctx, path, p.opts.RunID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Processor) fileError(path, op string, err error) error {
	p.logger.Error("file failed", "file", path, "op", op, "error", err)
	return &FileError{Path: path, Op: op, Err: err}
}
