// Package extract flattens statement trees into file, statement and unit
// records.
//
// Each statement is recorded in its own committed transaction before its
// units are written. Units are then written in depth-first document order
// under the configured CommitPolicy. A failure while writing units rolls back
// only the open unit transaction: the statement row, earlier statements and
// later statements are unaffected.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlinsight/pkg/sqltree"
)

// CommitPolicy selects where unit transactions are committed.
type CommitPolicy string

// Commit policies.
const (
	// PerStatement commits all units of a statement together.
	PerStatement CommitPolicy = "statement"
	// PerGroup commits before descending into each group.
	PerGroup CommitPolicy = "group"
	// PerUnit commits after every unit.
	PerUnit CommitPolicy = "unit"
)

// ParseCommitPolicy parses a policy name. Empty means PerStatement.
func ParseCommitPolicy(s string) (CommitPolicy, error) {
	switch p := CommitPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PerStatement, nil
	case PerStatement, PerGroup, PerUnit:
		return p, nil
	default:
		return "", fmt.Errorf("unknown commit policy %q (expected statement, group or unit)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *CommitPolicy) UnmarshalText(text []byte) error {
	v, err := ParseCommitPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p CommitPolicy) String() string {
	if p == "" {
		return string(PerStatement)
	}
	return string(p)
}

// Phase is the progress of a single statement through Flatten.
type Phase uint8

// Flatten phases, in order. A statement ends in PhaseDone or PhaseRolledBack.
const (
	PhaseStart Phase = iota
	PhaseContentDerived
	PhaseStatementCommitted
	PhaseTraversing
	PhaseDone
	PhaseRolledBack
)

var phaseNames = [...]string{
	PhaseStart:              "start",
	PhaseContentDerived:     "content-derived",
	PhaseStatementCommitted: "statement-committed",
	PhaseTraversing:         "traversing",
	PhaseDone:               "done",
	PhaseRolledBack:         "rolled-back",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", p)
}

// StatementContent derives the text recorded for a statement: its semantic
// name when it has one, otherwise its normalized text. Both are trimmed; an
// empty result means the statement is not recorded.
func StatementContent(n sqltree.Node) string {
	if n == nil {
		return ""
	}
	if name := strings.TrimSpace(n.Name()); name != "" {
		return name
	}
	return strings.TrimSpace(n.Normalized())
}

// Options configures a Flattener.
type Options struct {
	Policy CommitPolicy
	Logger *slog.Logger
}

// Flattener writes statement trees to a Sink.
type Flattener struct {
	sink   Sink
	policy CommitPolicy
	logger *slog.Logger
}

// NewFlattener creates a Flattener writing to sink.
func NewFlattener(sink Sink, opts Options) *Flattener {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy := opts.Policy
	if policy == "" {
		policy = PerStatement
	}
	return &Flattener{sink: sink, policy: policy, logger: logger}
}

// Result describes one flattened statement.
type Result struct {
	StatementID int64
	Content     string
	// Units counts committed units only.
	Units   int
	Skipped bool
	Phase   Phase
}

// Recorded reports whether a statement row was committed.
func (r Result) Recorded() bool {
	return r.StatementID > 0
}

// Flatten records root as a statement of fileID followed by its significant
// leaves as units. Statements with empty content are skipped without error.
// A returned error is always a *StatementError; what was committed before it
// stays committed.
func (f *Flattener) Flatten(ctx context.Context, root sqltree.Node, fileID int64) (Result, error) {
	// A statement that has started runs to the end so its transaction is
	// always resolved.
	ctx = context.WithoutCancel(ctx)

	res := Result{Phase: PhaseStart}
	res.Content = StatementContent(root)
	if res.Content == "" {
		res.Skipped = true
		f.logger.Debug("skipping empty statement", "file_id", fileID)
		return res, nil
	}
	res.Phase = PhaseContentDerived

	stmtID, err := f.createStatement(ctx, fileID, res.Content)
	if err != nil {
		return res, f.fail(&res, fileID, err)
	}
	res.StatementID = stmtID
	res.Phase = PhaseStatementCommitted

	scope := &unitScope{sink: f.sink, policy: f.policy}
	res.Phase = PhaseTraversing
	err = f.walk(ctx, scope, stmtID, root)
	if err == nil {
		err = scope.checkpoint()
	}
	res.Units = scope.committed
	if err != nil {
		if rbErr := scope.rollback(); rbErr != nil {
			f.logger.Warn("rollback failed", "statement", stmtID, "error", rbErr)
		}
		res.Phase = PhaseRolledBack
		return res, f.fail(&res, fileID, err)
	}

	res.Phase = PhaseDone
	f.logger.Debug("statement flattened", "statement", stmtID, "units", res.Units)
	return res, nil
}

func (f *Flattener) createStatement(ctx context.Context, fileID int64, content string) (int64, error) {
	tx, err := f.sink.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := tx.CreateStatement(ctx, fileID, content)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// walk visits n depth-first, writing one unit per significant leaf.
func (f *Flattener) walk(ctx context.Context, scope *unitScope, stmtID int64, n sqltree.Node) error {
	if n == nil {
		return ErrMalformedTree
	}
	if !IsSignificant(n) {
		f.logger.Debug("skipping node", "statement", stmtID, "kind", n.Category().String(), "literal", n.Literal())
		return nil
	}

	if !n.IsGroup() {
		return scope.add(ctx, stmtID, n.Category().String(), n.Literal())
	}

	if f.policy == PerGroup {
		if err := scope.checkpoint(); err != nil {
			return err
		}
	}
	for _, child := range n.Children() {
		if err := f.walk(ctx, scope, stmtID, child); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flattener) fail(res *Result, fileID int64, err error) error {
	f.logger.Error("statement failed",
		"file_id", fileID,
		"statement", res.StatementID,
		"content", abbreviate(res.Content),
		"phase", res.Phase.String(),
		"error", err,
	)
	return &StatementError{
		FileID:      fileID,
		StatementID: res.StatementID,
		Content:     res.Content,
		Phase:       res.Phase,
		Err:         err,
	}
}

// unitScope holds the open unit transaction of one statement. The
// transaction is begun lazily on the first unit.
type unitScope struct {
	sink      Sink
	policy    CommitPolicy
	tx        Tx
	pending   int
	committed int
}

func (s *unitScope) add(ctx context.Context, stmtID int64, kind, value string) error {
	if s.tx == nil {
		tx, err := s.sink.Begin(ctx)
		if err != nil {
			return err
		}
		s.tx = tx
	}
	if _, err := s.tx.CreateUnit(ctx, stmtID, kind, value); err != nil {
		return err
	}
	s.pending++
	if s.policy == PerUnit {
		return s.checkpoint()
	}
	return nil
}

// checkpoint commits the open transaction, if any.
func (s *unitScope) checkpoint() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	n := s.pending
	s.pending = 0
	if err := tx.Commit(); err != nil {
		return err
	}
	s.committed += n
	return nil
}

// rollback discards the open transaction, if any.
func (s *unitScope) rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.pending = 0
	return tx.Rollback()
}
