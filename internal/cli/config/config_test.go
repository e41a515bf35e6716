package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlinsight/internal/extract"
	"github.com/leapstack-labs/sqlinsight/internal/store"
	"github.com/leapstack-labs/sqlinsight/internal/textenc"
)

// chdirTemp moves the test into an empty directory so no stray config file
// is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()
	return dir
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sqlinsight.yaml"), []byte(body), 0o600))
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("encoding", "e", "", "")
	fs.Int("workers", 0, "")
	fs.String("commit-policy", "", "")
	fs.String("decode-errors", "", "")
	fs.String("database", "", "")
	fs.String("driver", "", "")
	fs.StringSlice("extensions", nil, "")
	fs.BoolP("verbose", "v", false, "")
	fs.String("log-level", "", "")
	fs.StringP("output", "o", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultEncoding, cfg.Encoding)
	assert.Equal(t, textenc.Replace, cfg.DecodeErrors)
	assert.Equal(t, extract.PerStatement, cfg.CommitPolicy)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, []string{".sql"}, cfg.Extensions)
	assert.Equal(t, store.SQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath(time.Now()), cfg.Database.DSN)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestDefaultDatabasePath(t *testing.T) {
	day := time.Date(2024, time.March, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "metasql_20240307.db", DefaultDatabasePath(day))
}

func TestLoadConfig_File(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, `
encoding: latin-1
decode_errors: ignore
commit_policy: group
workers: 4
extensions: [".sql", ".ddl"]
log_level: debug
output: json
database:
  driver: postgres
  dsn: postgres://localhost/meta
`)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlinsight.yaml", GetConfigFileUsed())
	assert.Equal(t, "latin-1", cfg.Encoding)
	assert.Equal(t, textenc.Ignore, cfg.DecodeErrors)
	assert.Equal(t, extract.PerGroup, cfg.CommitPolicy)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{".sql", ".ddl"}, cfg.Extensions)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, store.Postgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/meta", cfg.Database.DSN)
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	chdirTemp(t)
	other := t.TempDir()
	path := filepath.Join(other, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\n"), 0o600))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, "workers: 2\ncommit_policy: group\nencoding: latin-1\n")
	t.Setenv("SQLINSIGHT_WORKERS", "6")
	t.Setenv("SQLINSIGHT_COMMIT_POLICY", "unit")
	t.Setenv("SQLINSIGHT_DATABASE__DSN", "env.db")
	t.Setenv("SQLINSIGHT_EXTENSIONS", ".sql,.psql")

	cfg, err := LoadConfig("", testFlags(t, "--workers", "8", "--database", "flag.db"))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers, "flag beats env")
	assert.Equal(t, "flag.db", cfg.Database.DSN, "flag beats env")
	assert.Equal(t, extract.PerUnit, cfg.CommitPolicy, "env beats file")
	assert.Equal(t, []string{".sql", ".psql"}, cfg.Extensions)
	assert.Equal(t, "latin-1", cfg.Encoding, "file beats default")
}

func TestLoadConfig_FlagKeys(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig("", testFlags(t,
		"-e", "cp1252",
		"--commit-policy", "unit",
		"--decode-errors", "ignore",
		"--driver", "pgx",
		"--database", "postgres://db/meta",
		"--extensions", ".sql,.ddl",
		"-o", "yaml",
	))
	require.NoError(t, err)

	assert.Equal(t, "cp1252", cfg.Encoding)
	assert.Equal(t, extract.PerUnit, cfg.CommitPolicy)
	assert.Equal(t, textenc.Ignore, cfg.DecodeErrors)
	assert.Equal(t, store.Postgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://db/meta", cfg.Database.DSN)
	assert.Equal(t, []string{".sql", ".ddl"}, cfg.Extensions)
	assert.Equal(t, "yaml", cfg.OutputFormat)
}

func TestLoadConfig_VerboseEnablesDebug(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig("", testFlags(t, "-v"))
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		errSubstr string
	}{
		{"bad commit policy", "commit_policy: sometimes\n", "unknown commit policy"},
		{"bad decode policy", "decode_errors: strict\n", "unknown decode policy"},
		{"bad driver", "database:\n  driver: mysql\n", "unsupported database driver"},
		{"bad log level", "log_level: loud\n", "unable to decode config"},
		{"negative workers", "workers: -1\n", "workers must not be negative"},
		{"postgres without dsn", "database:\n  driver: postgres\n", "database.dsn is required"},
		{"bad output", "output: xml\n", "unknown output format"},
		{"malformed yaml", "workers: [\n", "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdirTemp(t)
			writeConfig(t, dir, tt.file)

			_, err := LoadConfig("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestValidateLocation(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.sql")
	require.NoError(t, os.WriteFile(file, []byte("SELECT 1;"), 0o600))

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"directory", dir, 0},
		{"missing", filepath.Join(dir, "nope"), ExitLocationMissing},
		{"file", file, ExitNotDirectory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLocation(tt.path)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}
			var pe *PreconditionError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantCode, pe.Code)
		})
	}
}

func TestResolveEncoding(t *testing.T) {
	cfg := Default()
	enc, err := cfg.ResolveEncoding()
	require.NoError(t, err)
	assert.Equal(t, "utf-8", enc.String())

	cfg.Encoding = "klingon-8"
	_, err = cfg.ResolveEncoding()
	var pe *PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ExitUnknownEncoding, pe.Code)
	assert.Contains(t, err.Error(), "klingon-8")
}

func TestGetLogger_Fallback(t *testing.T) {
	logger := GetLogger(context.Background())
	require.NotNil(t, logger)

	custom := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), custom)
	assert.Same(t, custom, GetLogger(ctx))
}
