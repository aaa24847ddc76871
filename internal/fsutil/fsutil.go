// Package fsutil provides the small filesystem helpers shared by the debug
// recorder and the command line tools: atomic writes and count-based
// retention pruning.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// AtomicWriteFile writes data to a temporary file in the target directory and
// renames it into place. Readers tailing the directory never observe a
// partially written file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// PruneOldest removes the lexically smallest files matching pattern in dir
// until at most keep remain, and returns the number removed. Zero-padded
// sequence names (state_000042.json) sort oldest-first, so no stat calls are
// needed.
func PruneOldest(dir, pattern string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("bad prune pattern %q: %w", pattern, err)
	}
	if len(matches) <= keep {
		return 0, nil
	}

	sort.Strings(matches)
	removed := 0
	for _, path := range matches[:len(matches)-keep] {
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}
