package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leapstack-labs/sqlinsight/internal/store"
)

// Tx is an open write transaction on a metadata sink.
type Tx interface {
	CreateFile(ctx context.Context, path, runID string) (int64, error)
	CreateStatement(ctx context.Context, fileID int64, name string) (int64, error)
	CreateUnit(ctx context.Context, statementID int64, kind, value string) (int64, error)
	Commit() error
	// Rollback must be safe to call after Commit.
	Rollback() error
}

// Sink hands out transactions.
type Sink interface {
	Begin(ctx context.Context) (Tx, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context) (Tx, error)

// Begin implements Sink.
func (f SinkFunc) Begin(ctx context.Context) (Tx, error) {
	return f(ctx)
}

// StoreSink adapts a metadata store to Sink.
func StoreSink(s *store.Store) Sink {
	return SinkFunc(func(ctx context.Context) (Tx, error) {
		tx, err := s.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return tx, nil
	})
}

// errUnknownParent mirrors a foreign key violation in MemorySink.
var errUnknownParent = errors.New("foreign key constraint failed")

// MemorySink is an in-memory Sink with the same visibility rules as the
// database: inserts become visible on Commit and vanish on Rollback. Ids are
// allocated on insert and never reused, like an autoincrement column.
// It backs dry runs and tests.
type MemorySink struct {
	mu         sync.Mutex
	nextID     int64
	files      []store.File
	statements []store.Statement
	units      []store.Unit
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Begin implements Sink.
func (m *MemorySink) Begin(_ context.Context) (Tx, error) {
	return &memoryTx{sink: m}, nil
}

func (m *MemorySink) allocate() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

func (m *MemorySink) hasFile(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (m *MemorySink) hasStatement(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.statements {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Files returns committed files in insertion order.
func (m *MemorySink) Files() []store.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.File(nil), m.files...)
}

// Statements returns the committed statements of a file.
func (m *MemorySink) Statements(fileID int64) []store.Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Statement
	for _, s := range m.statements {
		if s.FileID == fileID {
			out = append(out, s)
		}
	}
	return out
}

// Units returns the committed units of a statement.
func (m *MemorySink) Units(statementID int64) []store.Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Unit
	for _, u := range m.units {
		if u.StatementID == statementID {
			out = append(out, u)
		}
	}
	return out
}

// Counts returns committed row totals.
func (m *MemorySink) Counts() store.Counts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return store.Counts{Files: len(m.files), Statements: len(m.statements), Units: len(m.units)}
}

type memoryTx struct {
	sink       *MemorySink
	files      []store.File
	statements []store.Statement
	units      []store.Unit
	done       bool
}

func (t *memoryTx) CreateFile(_ context.Context, path, runID string) (int64, error) {
	if t.done {
		return 0, store.ErrTxDone
	}
	if path == "" {
		return 0, fmt.Errorf("failed to create file: empty path")
	}
	f := store.File{ID: t.sink.allocate(), Path: path, RunID: runID}
	t.files = append(t.files, f)
	return f.ID, nil
}

func (t *memoryTx) CreateStatement(_ context.Context, fileID int64, name string) (int64, error) {
	if t.done {
		return 0, store.ErrTxDone
	}
	if !t.sink.hasFile(fileID) && !t.pendingFile(fileID) {
		return 0, fmt.Errorf("failed to create statement: file %d: %w", fileID, errUnknownParent)
	}
	s := store.Statement{ID: t.sink.allocate(), Name: name, FileID: fileID}
	t.statements = append(t.statements, s)
	return s.ID, nil
}

func (t *memoryTx) CreateUnit(_ context.Context, statementID int64, kind, value string) (int64, error) {
	if t.done {
		return 0, store.ErrTxDone
	}
	if !t.sink.hasStatement(statementID) && !t.pendingStatement(statementID) {
		return 0, fmt.Errorf("failed to create unit: statement %d: %w", statementID, errUnknownParent)
	}
	u := store.Unit{ID: t.sink.allocate(), Kind: kind, Value: value, StatementID: statementID}
	t.units = append(t.units, u)
	return u.ID, nil
}

func (t *memoryTx) pendingFile(id int64) bool {
	for _, f := range t.files {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (t *memoryTx) pendingStatement(id int64) bool {
	for _, s := range t.statements {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (t *memoryTx) Commit() error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true

	m := t.sink
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, t.files...)
	m.statements = append(m.statements, t.statements...)
	m.units = append(m.units, t.units...)
	return nil
}

func (t *memoryTx) Rollback() error {
	t.done = true
	t.files, t.statements, t.units = nil, nil, nil
	return nil
}
