// Package scan walks a directory tree and records every SQL file it finds.
package scan

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

// DefaultExtensions are the file suffixes scanned when none are configured.
var DefaultExtensions = []string{".sql"}

// Discover returns the files under root whose names end in one of exts, in
// lexical walk order. Matching is case-sensitive. Unreadable subdirectories
// are logged and skipped; only a failure on root itself is returned.
func Discover(root string, exts []string, logger *slog.Logger) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if matchExtension(d.Name(), exts) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func matchExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
