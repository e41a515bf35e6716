package store

import (
	"context"
	"database/sql"
	"fmt"
)

// File is a stored file row.
type File struct {
	ID    int64
	Path  string
	RunID string
}

// Statement is a stored statement row.
type Statement struct {
	ID     int64
	Name   string
	FileID int64
}

// Unit is a stored unit row.
type Unit struct {
	ID          int64
	Kind        string
	Value       string
	StatementID int64
}

// Counts are row totals across the metadata tables.
type Counts struct {
	Files      int `json:"files" yaml:"files"`
	Statements int `json:"statements" yaml:"statements"`
	Units      int `json:"units" yaml:"units"`
}

// Files lists every file row in insertion order.
func (s *Store) Files(ctx context.Context) ([]File, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx, `SELECT identifier, path, run FROM files ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []File
	for rows.Next() {
		var (
			f   File
			run sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Path, &run); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.RunID = run.String
		files = append(files, f)
	}
	return files, rows.Err()
}

// Statements lists the statements of a file in insertion order.
func (s *Store) Statements(ctx context.Context, fileID int64) ([]Statement, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT identifier, name, file FROM statements
		WHERE file = ? ORDER BY identifier
	`), fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stmts []Statement
	for rows.Next() {
		var st Statement
		if err := rows.Scan(&st.ID, &st.Name, &st.FileID); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		stmts = append(stmts, st)
	}
	return stmts, rows.Err()
}

// Units lists the units of a statement in traversal order.
func (s *Store) Units(ctx context.Context, statementID int64) ([]Unit, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT identifier, kind, value, statement FROM units
		WHERE statement = ? ORDER BY identifier
	`), statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Kind, &u.Value, &u.StatementID); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// Counts returns row totals for files, statements and units.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	if s.db == nil {
		return Counts{}, errNotOpened
	}

	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM statements),
			(SELECT COUNT(*) FROM units)
	`).Scan(&c.Files, &c.Statements, &c.Units)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return c, nil
}
