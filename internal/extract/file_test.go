package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlinsight/internal/store"
	"github.com/leapstack-labs/sqlinsight/internal/testutil"
	"github.com/leapstack-labs/sqlinsight/internal/textenc"
	"github.com/leapstack-labs/sqlinsight/pkg/token"
)

func TestProcessFile_EndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"a.sql": "SELECT 1;",
		"b.sql": "",
	})

	s, err := store.Open(ctx, store.Config{DSN: ":memory:", Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	p := NewProcessor(StoreSink(s), ProcessorOptions{Logger: testutil.NewTestLogger(t)})
	enc := textenc.MustLookup("utf-8")

	ra, err := p.ProcessFile(ctx, filepath.Join(dir, "a.sql"), enc)
	require.NoError(t, err)
	assert.Equal(t, 1, ra.Statements)
	assert.Empty(t, ra.Errors)

	rb, err := p.ProcessFile(ctx, filepath.Join(dir, "b.sql"), enc)
	require.NoError(t, err)
	assert.Equal(t, 0, rb.Statements)

	files, err := s.Files(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.Path), f.Path)
	}
	assert.Equal(t, filepath.Join(dir, "a.sql"), files[0].Path)

	stmtsA, err := s.Statements(ctx, files[0].ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(stmtsA), 1)

	stmtsB, err := s.Statements(ctx, files[1].ID)
	require.NoError(t, err)
	assert.Empty(t, stmtsB)

	units, err := s.Units(ctx, stmtsA[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, units)
	for _, u := range units {
		assert.NotEqual(t, token.Punctuation.String(), u.Kind)
		assert.NotEqual(t, token.Whitespace.String(), u.Kind)
		assert.NotEqual(t, token.Newline.String(), u.Kind)
	}
}

func TestProcessFile_StatementFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"q.sql": "DELETE FROM a;\nDELETE FROM b;\nDELETE FROM c;\n",
	})

	sink := &faultySink{inner: NewMemorySink(), failStatements: map[string]bool{"b": true}}
	p := NewProcessor(sink, ProcessorOptions{RunID: "run-1"})

	report, err := p.ProcessFile(ctx, filepath.Join(dir, "q.sql"), textenc.MustLookup(""))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Statements)
	require.Len(t, report.Errors, 1)

	var se *StatementError
	require.ErrorAs(t, report.Errors[0], &se)
	assert.Equal(t, report.Path, se.Path)
	assert.Contains(t, se.Error(), report.Path)

	var names []string
	for _, st := range sink.inner.Statements(report.FileID) {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"a", "c"}, names)

	files := sink.inner.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "run-1", files[0].RunID)
}

func TestProcessFile_ReadFailure(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	p := NewProcessor(sink, ProcessorOptions{})

	report, err := p.ProcessFile(ctx, filepath.Join(t.TempDir(), "missing.sql"), textenc.MustLookup(""))
	assert.Nil(t, report)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "read", fe.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, store.Counts{}, sink.Counts())
}

func TestProcessFile_DecodesWithPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.sql"), []byte("SELECT '\xff'"), 0o644))

	tests := []struct {
		policy textenc.Policy
		want   string
	}{
		{textenc.Replace, "'�'"},
		{textenc.Ignore, "''"},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			sink := NewMemorySink()
			p := NewProcessor(sink, ProcessorOptions{DecodeErrors: tt.policy})
			report, err := p.ProcessFile(ctx, filepath.Join(dir, "x.sql"), textenc.MustLookup("utf-8"))
			require.NoError(t, err)

			stmts := sink.Statements(report.FileID)
			require.Len(t, stmts, 1)
			units := sink.Units(stmts[0].ID)
			require.Len(t, units, 2)
			assert.Equal(t, tt.want, units[1].Value)
		})
	}
}

func TestProcessFile_BlankStatements(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"trailing.sql": "SELECT 1;\n\n   ",
		"blank.sql":    "  \n\t\n",
	})

	sink := NewMemorySink()
	p := NewProcessor(sink, ProcessorOptions{})

	report, err := p.ProcessFile(ctx, filepath.Join(dir, "trailing.sql"), textenc.MustLookup(""))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Statements)
	assert.Equal(t, 2, report.Units)

	report, err = p.ProcessFile(ctx, filepath.Join(dir, "blank.sql"), textenc.MustLookup(""))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Statements)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, sink.Files(), 2)
}
