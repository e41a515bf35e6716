package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/sqlinsight/internal/extract"
)

// DefaultDebounce is the quiet period before a changed file is processed.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	// RunID tags file rows recorded while watching.
	RunID    string
	Debounce time.Duration
	// OnReady is called once every directory is being watched.
	OnReady func()
	// OnFile is called from the watch loop after each processed file.
	OnFile func(path string, report *extract.FileReport, err error)
}

// Watch records matching files under root as they are created or written,
// until ctx is done. Every change adds a new file row; nothing recorded
// earlier is touched. New subdirectories are watched as they appear.
func (s *Scanner) Watch(ctx context.Context, root string, opts WatchOptions) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := s.watchDir(watcher, abs); err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	s.logger.Info("watching for changes", "location", abs)
	if opts.OnReady != nil {
		opts.OnReady()
	}

	proc := s.processor(opts.RunID)
	exts := s.cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	pending := make(map[string]*time.Timer)
	ready := make(chan string)
	schedule := func(path string) {
		if t, ok := pending[path]; ok {
			t.Reset(opts.Debounce)
			return
		}
		pending[path] = time.AfterFunc(opts.Debounce, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := s.watchDir(watcher, event.Name); err != nil {
						s.logger.Warn("failed to watch directory", "path", event.Name, "error", err)
					}
					// Files may land in the directory before it is watched.
					paths, _ := Discover(event.Name, exts, s.logger)
					for _, p := range paths {
						schedule(p)
					}
					continue
				}
			}

			if matchExtension(filepath.Base(event.Name), exts) {
				schedule(event.Name)
			}

		case path := <-ready:
			delete(pending, path)
			s.logger.Info("change detected", "file", path)
			report, err := proc.ProcessFile(ctx, path, s.cfg.Encoding)
			if opts.OnFile != nil {
				opts.OnFile(path, report, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDir recursively adds a directory to the watcher.
func (s *Scanner) watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
