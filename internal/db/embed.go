package db

import (
	"embed"
	"io/fs"
	"os"
)

// migrationsEmbedFS carries the schema migrations inside the binary so a
// deployed service never depends on source files being present.
//
//go:embed migrations/*.sql
var migrationsEmbedFS embed.FS

// getMigrationsFS returns the migrations filesystem. When the local
// migrations directory exists (a development checkout), it is preferred so
// edits apply without a rebuild; otherwise the embedded copy is used.
func getMigrationsFS() (fs.FS, error) {
	const devDir = "internal/db/migrations"
	if info, err := os.Stat(devDir); err == nil && info.IsDir() {
		return os.DirFS(devDir), nil
	}
	return fs.Sub(migrationsEmbedFS, "migrations")
}
