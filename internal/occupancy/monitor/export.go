package monitor

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/occupancy.report/internal/fsutil"
	"github.com/banshee-data/occupancy.report/internal/security"
)

// exportBaseDir is the one directory estimate exports may land in. User
// input never picks the directory, only the final file name.
var exportBaseDir = func() string {
	tmp := os.TempDir()
	abs, err := filepath.Abs(tmp)
	if err != nil {
		log.Printf("export: could not resolve absolute temp dir from %q: %v", tmp, err)
		return tmp
	}
	return filepath.Clean(abs)
}()

// safeExportPath builds an absolute path under exportBaseDir from a
// user-supplied file name. Only the last path component is kept, and the
// joined result is double-checked with security.ValidateExportPath.
func safeExportPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty export filename")
	}
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid export filename %q", name)
	}

	cleanPath := filepath.Clean(filepath.Join(exportBaseDir, base))
	if !strings.HasPrefix(cleanPath, exportBaseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("export path escapes base directory")
	}
	if err := security.ValidateExportPath(cleanPath); err != nil {
		log.Printf("Security: rejected export path %q (from %q): %v", cleanPath, name, err)
		return "", fmt.Errorf("invalid export path: %w", err)
	}
	return cleanPath, nil
}

// handleExportEstimates writes one person's journalled estimates to a JSON
// file under the export directory, so a run's history can be pulled off a
// deployed unit without shelling in.
// Query params:
//
//	person (required)
//	file (optional; basename only, defaults to estimates_<person>.json)
//	limit (optional, default 200, max 5000)
func (m *Monitor) handleExportEstimates(w http.ResponseWriter, r *http.Request) {
	if m.db == nil {
		m.writeJSONError(w, http.StatusServiceUnavailable, "no database configured for exports")
		return
	}

	personID := r.URL.Query().Get("person")
	if personID == "" {
		m.writeJSONError(w, http.StatusBadRequest, "missing 'person' parameter")
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 5000 {
			limit = v
		}
	}

	rows, err := m.db.RecentEstimates(r.Context(), personID, limit)
	if err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get estimates: %v", err))
		return
	}
	if len(rows) == 0 {
		m.writeJSONError(w, http.StatusNotFound, "no estimates for person")
		return
	}

	name := r.URL.Query().Get("file")
	if name == "" {
		name = fmt.Sprintf("estimates_%s.json", security.SanitizeFilename(personID))
	}
	path, err := safeExportPath(name)
	if err != nil {
		m.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("export path: %v", err))
		return
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("encode estimates: %v", err))
		return
	}
	if err := fsutil.AtomicWriteFile(path, data, 0644); err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("write export: %v", err))
		return
	}

	log.Printf("Exported %d estimates for %s to %s", len(rows), personID, path)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"note":   "File exported to temp directory",
		"file":   filepath.Base(path),
		"rows":   len(rows),
	})
}
