package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlinsight/internal/cli/config"
	"github.com/leapstack-labs/sqlinsight/internal/cli/output"
	"github.com/leapstack-labs/sqlinsight/internal/extract"
	"github.com/leapstack-labs/sqlinsight/internal/scan"
	"github.com/leapstack-labs/sqlinsight/internal/store"
	"github.com/leapstack-labs/sqlinsight/internal/textenc"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an open metadata store.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cctx := NewCommandContextWithoutStore(cmd)

	st, err := openStore(cmd.Context(), cctx.Cfg, cctx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cctx.Store = st

	cleanup := func() {
		_ = st.Close()
	}
	return cctx, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a store.
// Useful for dry runs that never touch the database.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Sink returns where extracted rows go, and the run recorder if any.
// Without a store the rows are kept in memory and discarded.
func (c *CommandContext) Sink() (extract.Sink, scan.RunRecorder) {
	if c.Store == nil {
		return extract.NewMemorySink(), nil
	}
	return extract.StoreSink(c.Store), c.Store
}

// Scanner builds a scanner from the configuration.
func (c *CommandContext) Scanner(enc textenc.Encoding) *scan.Scanner {
	sink, runs := c.Sink()
	return scan.New(sink, runs, scan.Config{
		Extensions:   c.Cfg.Extensions,
		Encoding:     enc,
		DecodeErrors: c.Cfg.DecodeErrors,
		CommitPolicy: c.Cfg.CommitPolicy,
		Workers:      c.Cfg.Workers,
		Logger:       c.Logger,
	})
}

// DatabaseName describes the store for output. Connection strings other
// than SQLite paths are not echoed since they may carry credentials.
func (c *CommandContext) DatabaseName() string {
	if c.Store == nil {
		return ""
	}
	if c.Cfg.Database.Driver == store.SQLite {
		return c.Cfg.Database.DSN
	}
	return string(c.Cfg.Database.Driver)
}

// getConfig returns the current configuration, or defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	// Ensure the SQLite file's directory exists
	if cfg.Database.Driver == store.SQLite && cfg.Database.DSN != ":memory:" {
		dir := filepath.Dir(cfg.Database.DSN)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	st, err := store.Open(ctx, store.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return st, nil
}
