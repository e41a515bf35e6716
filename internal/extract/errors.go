package extract

import (
	"errors"
	"fmt"
)

// ErrMalformedTree is reported when a group holds a nil child.
var ErrMalformedTree = errors.New("malformed tree: nil node")

// FileError reports a file that produced no records at all: it could not be
// resolved, read, decoded or registered.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// StatementError reports a statement whose extraction stopped early. Rows
// committed before the failure remain in place.
type StatementError struct {
	Path        string
	FileID      int64
	StatementID int64
	Content     string
	Phase       Phase
	Err         error
}

func (e *StatementError) Error() string {
	where := e.Path
	if where == "" {
		where = fmt.Sprintf("file %d", e.FileID)
	}
	if e.StatementID == 0 {
		return fmt.Sprintf("statement %q in %s: %v", abbreviate(e.Content), where, e.Err)
	}
	return fmt.Sprintf("statement %d (%q) in %s: %v", e.StatementID, abbreviate(e.Content), where, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// abbreviate shortens s for messages.
func abbreviate(s string) string {
	const limit = 40
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
