// Package security validates filesystem paths built from user input.
//
// The monitor's debug console accepts file names for estimate exports, and
// person identifiers arriving off the wire end up embedded in those names.
// Everything here exists to keep the resulting writes inside directories we
// control.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports whether path stays inside dir once
// cleaned and with symlinks resolved. It rejects both lexical traversal
// (.. components) and symlinked parents that point outside dir.
func ValidatePathWithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	canonDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonDir, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("path outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %q escapes %q", path, dir)
	}
	return nil
}

// canonicalize resolves symlinks in absPath. Export targets usually do not
// exist yet, so when the path itself cannot be resolved the nearest existing
// ancestor is resolved instead and the remaining components reattached. That
// closes the hole where tmp/evil-link/out.json follows evil-link somewhere
// else entirely.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for check := absPath; ; {
		parent := filepath.Dir(check)
		if parent == check {
			// Walked to the root without finding anything that exists.
			return absPath
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, absPath)
			return filepath.Join(resolved, rel)
		}
		check = parent
	}
}

// ValidateExportPath accepts paths under the system temp directory or the
// current working directory, the only places export handlers are allowed to
// write. Handlers construct their paths before calling this, so a failure
// means the request was hostile or the handler has a bug; either way the
// write is refused.
func ValidateExportPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	var lastErr error
	for _, dir := range []string{os.TempDir(), cwd} {
		if lastErr = ValidatePathWithinDirectory(path, dir); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("export path not under temp or working directory: %w", lastErr)
}

// SanitizeFilename maps an arbitrary identifier to something safe to embed in
// a file name. Anything outside ASCII letters, digits, dot, dash and
// underscore becomes a single underscore, runs of replacements collapse, and
// the result is capped at 128 bytes. Never returns an empty string.
func SanitizeFilename(s string) string {
	const maxLen = 128

	out := make([]byte, 0, len(s))
	replaced := false
	for _, r := range s {
		if len(out) >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			out = append(out, byte(r))
			replaced = false
		default:
			if !replaced {
				out = append(out, '_')
				replaced = true
			}
		}
	}

	cleaned := strings.Trim(string(out), "._")
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
