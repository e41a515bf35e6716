// Package config provides configuration management for the sqlinsight CLI.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sqlinsight/internal/extract"
	"github.com/leapstack-labs/sqlinsight/internal/store"
	"github.com/leapstack-labs/sqlinsight/internal/textenc"
)

// Config holds all CLI configuration options.
type Config struct {
	Encoding     string               `koanf:"encoding"`
	DecodeErrors textenc.Policy       `koanf:"decode_errors"`
	CommitPolicy extract.CommitPolicy `koanf:"commit_policy"`
	Workers      int                  `koanf:"workers"`
	Extensions   []string             `koanf:"extensions"`
	Database     DatabaseConfig       `koanf:"database"`
	LogLevel     slog.Level           `koanf:"log_level"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
}

// DatabaseConfig selects the metadata store.
type DatabaseConfig struct {
	Driver store.Driver `koanf:"driver"`
	DSN    string       `koanf:"dsn"`
}

// Default configuration values.
const (
	DefaultEncoding     = textenc.DefaultName
	DefaultDecodeErrors = textenc.Replace
	DefaultCommitPolicy = extract.PerStatement
	DefaultDriver       = store.SQLite
	DefaultWorkers      = 1
	DefaultLogLevel     = "info"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	EnvPrefix           = "SQLINSIGHT_"
)

// DefaultExtensions are the file extensions scanned when none are configured.
var DefaultExtensions = []string{".sql"}

// DefaultDatabasePath names the SQLite file used when no DSN is configured.
// A new file is started each day.
func DefaultDatabasePath(now time.Time) string {
	return fmt.Sprintf("metasql_%s.db", now.Format("20060102"))
}

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	return &Config{
		Encoding:     DefaultEncoding,
		DecodeErrors: DefaultDecodeErrors,
		CommitPolicy: DefaultCommitPolicy,
		Workers:      DefaultWorkers,
		Extensions:   append([]string(nil), DefaultExtensions...),
		Database: DatabaseConfig{
			Driver: DefaultDriver,
			DSN:    DefaultDatabasePath(time.Now()),
		},
		LogLevel:     slog.LevelInfo,
		OutputFormat: DefaultOutput,
	}
}
