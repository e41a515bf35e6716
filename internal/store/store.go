// Package store persists extracted SQL metadata.
//
// The store holds three append-only tables linked by foreign keys: files,
// statements and units, plus a runs table recording each scan. SQLite is the
// default backend; PostgreSQL is supported through pgx. Writes go through
// explicit transactions (Begin/Commit/Rollback) so callers decide their own
// commit boundaries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver (pure Go)
)

// Driver names a supported database backend.
type Driver string

// Supported drivers.
const (
	SQLite   Driver = "sqlite"
	Postgres Driver = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Driver) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(strings.TrimSpace(string(text))); v {
	case "", "sqlite", "sqlite3":
		*d = SQLite
	case "postgres", "postgresql", "pgx":
		*d = Postgres
	default:
		return fmt.Errorf("unsupported database driver %q (expected sqlite or postgres)", text)
	}
	return nil
}

// sqlDriverName returns the database/sql driver registered for d.
func (d Driver) sqlDriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// ErrTxDone is returned when a resolved transaction is used again.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// errNotOpened is returned by operations on a closed store.
var errNotOpened = errors.New("database not opened")

// Config configures Open.
type Config struct {
	Driver Driver
	// DSN is a file path (or ":memory:") for SQLite and a connection string
	// for PostgreSQL.
	DSN    string
	Logger *slog.Logger
}

// Store is a metadata store backed by database/sql.
type Store struct {
	db     *sql.DB
	driver Driver
	logger *slog.Logger
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = SQLite
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	dsn := cfg.DSN
	if cfg.Driver == SQLite {
		dsn = sqliteDSN(cfg.DSN)
	}

	db, err := sql.Open(cfg.Driver.sqlDriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	// A single SQLite connection serializes writers, keeps an in-memory
	// database alive for the lifetime of the store and makes id allocation
	// unique across concurrent callers.
	if cfg.Driver == SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	s := New(db, cfg.Driver, cfg.Logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. No migrations are applied.
func New(db *sql.DB, driver Driver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if driver == "" {
		driver = SQLite
	}
	return &Store{db: db, driver: driver, logger: logger}
}

// sqliteDSN turns a path into a URI with foreign keys enforced.
func sqliteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver {
	return s.driver
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders for drivers that use numbered parameters.
func (s *Store) rebind(query string) string {
	if s.driver != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Begin starts a transaction. Callers must resolve it with Commit or
// Rollback; deferring Rollback right after Begin is always safe.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx, store: s}, nil
}

// Tx is a write transaction on the metadata tables.
type Tx struct {
	tx    *sql.Tx
	store *Store
	done  bool
}

// CreateFile inserts a file row and returns its identifier. An empty runID
// leaves the row untagged.
func (t *Tx) CreateFile(ctx context.Context, path, runID string) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("failed to create file: empty path")
	}
	var run any
	if runID != "" {
		run = runID
	}
	id, err := t.insert(ctx, `INSERT INTO files (path, run) VALUES (?, ?) RETURNING identifier`, path, run)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	return id, nil
}

// CreateStatement inserts a statement row belonging to fileID.
func (t *Tx) CreateStatement(ctx context.Context, fileID int64, name string) (int64, error) {
	id, err := t.insert(ctx, `INSERT INTO statements (name, file) VALUES (?, ?) RETURNING identifier`, name, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to create statement: %w", err)
	}
	return id, nil
}

// CreateUnit inserts a unit row belonging to statementID.
func (t *Tx) CreateUnit(ctx context.Context, statementID int64, kind, value string) (int64, error) {
	id, err := t.insert(ctx, `INSERT INTO units (kind, value, statement) VALUES (?, ?, ?) RETURNING identifier`, kind, value, statementID)
	if err != nil {
		return 0, fmt.Errorf("failed to create unit: %w", err)
	}
	return id, nil
}

func (t *Tx) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	var id int64
	if err := t.tx.QueryRowContext(ctx, t.store.rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Commit makes every insert of the transaction durable.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback discards every insert since Begin. It is a no-op on a resolved
// transaction.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	return nil
}
