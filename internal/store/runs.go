package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run records one scan of a location.
type Run struct {
	ID          string     `json:"id" yaml:"id"`
	Location    string     `json:"location" yaml:"location"`
	Encoding    string     `json:"encoding" yaml:"encoding"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	RunStats    `yaml:",inline"`
}

// RunStats are the totals written when a run completes.
type RunStats struct {
	Files      int `json:"files" yaml:"files"`
	Statements int `json:"statements" yaml:"statements"`
	Units      int `json:"units" yaml:"units"`
	Errors     int `json:"errors" yaml:"errors"`
}

// ErrRunNotFound is returned by GetRun for unknown identifiers.
var ErrRunNotFound = errors.New("run not found")

// StartRun records the start of a scan and returns it.
func (s *Store) StartRun(ctx context.Context, location, encoding string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &Run{
		ID:        uuid.New().String(),
		Location:  location,
		Encoding:  encoding,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (identifier, location, encoding, started_at)
		VALUES (?, ?, ?, ?)
	`), run.ID, run.Location, run.Encoding, formatTime(run.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	s.logger.Debug("run started", "run", run.ID, "location", location)
	return run, nil
}

// CompleteRun stamps the run with its completion time and totals.
func (s *Store) CompleteRun(ctx context.Context, id string, stats RunStats) error {
	if s.db == nil {
		return errNotOpened
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE runs
		SET completed_at = ?, files = ?, statements = ?, units = ?, errors = ?
		WHERE identifier = ?
	`), formatTime(time.Now().UTC()), stats.Files, stats.Statements, stats.Units, stats.Errors, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to complete run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// GetRun loads a run by identifier.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	var (
		run       Run
		started   string
		completed sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT identifier, location, encoding, started_at, completed_at,
		       files, statements, units, errors
		FROM runs WHERE identifier = ?
	`), id).Scan(&run.ID, &run.Location, &run.Encoding, &started, &completed,
		&run.Files, &run.Statements, &run.Units, &run.Errors)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
