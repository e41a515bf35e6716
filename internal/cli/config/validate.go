package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/leapstack-labs/sqlinsight/internal/cli/output"
	"github.com/leapstack-labs/sqlinsight/internal/textenc"
)

// Exit codes for failed preconditions.
const (
	ExitLocationMissing = 1
	ExitNotDirectory    = 2
	ExitUnknownEncoding = 3
)

// PreconditionError is a fatal check that fails before anything is recorded.
// Code is the process exit code.
type PreconditionError struct {
	Code int
	Err  error
}

func (e *PreconditionError) Error() string {
	return e.Err.Error()
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if len(c.Extensions) == 0 {
		return errors.New("extensions must not be empty")
	}
	for _, ext := range c.Extensions {
		if ext == "" {
			return errors.New("extensions must not contain an empty entry")
		}
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	return nil
}

// ResolveEncoding looks up the configured encoding.
func (c *Config) ResolveEncoding() (textenc.Encoding, error) {
	enc, err := textenc.Lookup(c.Encoding)
	if err != nil {
		return textenc.Encoding{}, &PreconditionError{Code: ExitUnknownEncoding, Err: err}
	}
	return enc, nil
}

// ValidateLocation checks that the scan location exists and is a directory.
func ValidateLocation(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &PreconditionError{
				Code: ExitLocationMissing,
				Err:  fmt.Errorf("location does not exist: %s", path),
			}
		}
		return &PreconditionError{Code: ExitLocationMissing, Err: fmt.Errorf("cannot access location %s: %w", path, err)}
	}
	if !info.IsDir() {
		return &PreconditionError{
			Code: ExitNotDirectory,
			Err:  fmt.Errorf("location is not a directory: %s", path),
		}
	}
	return nil
}
