package db

import (
	"os"
	"testing"
)

// Helper functions for creating pointer values
func boolPtr(b bool) *bool {
	return &b
}

// setupTestDB creates a migrated test database named after the test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	fname := t.Name() + ".db"
	_ = os.Remove(fname)

	db, err := NewDB(fname)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	return db
}

// cleanupTestDB closes the database and removes its files.
func cleanupTestDB(t *testing.T, db *DB) {
	t.Helper()
	fname := t.Name() + ".db"
	db.Close()
	_ = os.Remove(fname)
	_ = os.Remove(fname + "-shm")
	_ = os.Remove(fname + "-wal")
}
