package scan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlinsight/internal/extract"
	"github.com/leapstack-labs/sqlinsight/internal/store"
	"github.com/leapstack-labs/sqlinsight/internal/testutil"
	"github.com/leapstack-labs/sqlinsight/internal/textenc"
)

func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"a.sql":           "SELECT 1;",
		"b.sql":           "",
		"nested/c.sql":    "INSERT INTO orders (id) VALUES (1);\nUPDATE orders SET id = 2;",
		"nested/d.SQL":    "SELECT 2;",
		"nested/notes.md": "# not sql",
		"deep/er/e.sql":   "DROP TABLE IF EXISTS staging.orders;",
	})
	return dir
}

func TestDiscover(t *testing.T) {
	dir := fixture(t)

	paths, err := Discover(dir, nil, testutil.NewTestLogger(t))
	require.NoError(t, err)

	var rel []string
	for _, p := range paths {
		r, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"a.sql", "b.sql", "deep/er/e.sql", "nested/c.sql"}, rel)
}

func TestDiscover_CustomExtensions(t *testing.T) {
	dir := fixture(t)

	paths, err := Discover(dir, []string{".SQL", ".md"}, nil)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "d.SQL", filepath.Base(paths[0]))
	assert.Equal(t, "notes.md", filepath.Base(paths[1]))
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.Error(t, err)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{DSN: ":memory:", Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRun_Sequential(t *testing.T) {
	ctx := context.Background()
	dir := fixture(t)
	s := openStore(t)

	scanner := New(extract.StoreSink(s), s, Config{
		Encoding: textenc.MustLookup("utf-8"),
		Logger:   testutil.NewTestLogger(t),
	})
	summary, err := scanner.Run(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Files)
	assert.Equal(t, 0, summary.FilesFailed)
	assert.Equal(t, 4, summary.Statements)
	assert.False(t, summary.HasErrors())
	assert.False(t, summary.Interrupted)
	assert.NotEmpty(t, summary.RunID)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Files)
	assert.Equal(t, 4, counts.Statements)
	assert.Equal(t, summary.Units, counts.Units)

	run, err := s.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, summary.Units, run.Units)
	assert.Equal(t, 4, run.Files)
	require.NotNil(t, run.CompletedAt)

	files, err := s.Files(ctx)
	require.NoError(t, err)
	for _, f := range files {
		assert.Equal(t, summary.RunID, f.RunID)
	}

	var names []string
	for _, f := range files {
		stmts, err := s.Statements(ctx, f.ID)
		require.NoError(t, err)
		for _, st := range stmts {
			names = append(names, st.Name)
		}
	}
	assert.Equal(t, []string{"SELECT 1;", "staging.orders", "orders", "orders"}, names)
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	dir := fixture(t)

	seqSink := extract.NewMemorySink()
	seq, err := New(seqSink, nil, Config{}).Run(ctx, dir)
	require.NoError(t, err)

	parSink := extract.NewMemorySink()
	par, err := New(parSink, nil, Config{Workers: 4}).Run(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, seq.Files, par.Files)
	assert.Equal(t, seq.Statements, par.Statements)
	assert.Equal(t, seq.Units, par.Units)
	assert.Equal(t, seqSink.Counts(), parSink.Counts())

	paths := func(m *extract.MemorySink) []string {
		var out []string
		for _, f := range m.Files() {
			out = append(out, f.Path)
		}
		sort.Strings(out)
		return out
	}
	assert.Equal(t, paths(seqSink), paths(parSink))
}

func TestRun_Rerun_IsAdditive(t *testing.T) {
	ctx := context.Background()
	dir := fixture(t)
	s := openStore(t)
	scanner := New(extract.StoreSink(s), s, Config{})

	first, err := scanner.Run(ctx, dir)
	require.NoError(t, err)
	second, err := scanner.Run(ctx, dir)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, counts.Files)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := extract.NewMemorySink()
	summary, err := New(sink, nil, Config{}).Run(ctx, fixture(t))
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 0, summary.Files)
	assert.Empty(t, sink.Files())
}

func TestRun_UnreadableFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	ctx := context.Background()
	dir := fixture(t)
	locked := filepath.Join(dir, "locked.sql")
	require.NoError(t, os.WriteFile(locked, []byte("SELECT 1;"), 0o000))

	summary, err := New(extract.NewMemorySink(), nil, Config{}).Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Files)
	assert.Equal(t, 1, summary.FilesFailed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "file", summary.Failures[0].Type)
	assert.Equal(t, locked, summary.Failures[0].Path)
}

func TestSummaryString(t *testing.T) {
	s := &Summary{Files: 2, FilesFailed: 1, Statements: 3, Skipped: 1, Units: 9, Duration: 1500 * time.Microsecond}
	assert.Equal(t, "Files: 2 (1 failed) | Statements: 3 (1 skipped) | Units: 9 | Errors: 0 | Duration: 2ms", s.String())
}

func TestWatch_RecordsNewFiles(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := t.TempDir()
	sink := extract.NewMemorySink()
	scanner := New(sink, nil, Config{Logger: testutil.NewTestLogger(t)})

	ready := make(chan struct{})
	processed := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- scanner.Watch(ctx, dir, WatchOptions{
			Debounce: 20 * time.Millisecond,
			OnReady:  func() { close(ready) },
			OnFile: func(path string, _ *extract.FileReport, err error) {
				if err == nil {
					processed <- path
				}
			},
		})
	}()

	select {
	case <-ready:
	case <-ctx.Done():
		t.Fatal("watcher did not start")
	}

	testutil.WriteFiles(t, dir, map[string]string{
		"new.sql":  "SELECT 1;",
		"skip.txt": "SELECT 1;",
	})

	select {
	case path := <-processed:
		assert.Equal(t, filepath.Join(dir, "new.sql"), path)
	case <-ctx.Done():
		t.Fatal("file was not processed")
	}

	cancel()
	require.NoError(t, <-done)

	files := sink.Files()
	require.NotEmpty(t, files)
	for _, f := range files {
		assert.Equal(t, filepath.Join(dir, "new.sql"), f.Path)
	}
}
