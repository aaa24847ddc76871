package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := AtomicWriteFile(path, []byte(`{"frame":1}`), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read back file: %v", err)
	}
	if string(data) != `{"frame":1}` {
		t.Errorf("Unexpected content: %s", data)
	}
}

func TestAtomicWriteFile_Replaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := AtomicWriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("new"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read back file: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("Expected replaced content, got %s", data)
	}
}

func TestAtomicWriteFile_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := AtomicWriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only the target file, found %v", names)
	}
}

func TestPruneOldest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"state_000001.json",
		"state_000002.json",
		"state_000003.json",
		"state_000004.json",
		"frame_000001.png",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to seed %s: %v", name, err)
		}
	}

	removed, err := PruneOldest(dir, "state_*.json", 2)
	if err != nil {
		t.Fatalf("PruneOldest failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}

	for _, name := range []string{"state_000001.json", "state_000002.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("Expected %s pruned", name)
		}
	}
	for _, name := range []string{"state_000003.json", "state_000004.json", "frame_000001.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s kept: %v", name, err)
		}
	}
}

func TestPruneOldest_UnderLimit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "state_000001.json"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	removed, err := PruneOldest(dir, "state_*.json", 5)
	if err != nil {
		t.Fatalf("PruneOldest failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected 0 removed, got %d", removed)
	}
}

func TestPruneOldest_NoMatches(t *testing.T) {
	removed, err := PruneOldest(t.TempDir(), "state_*.json", 0)
	if err != nil {
		t.Fatalf("PruneOldest failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected 0 removed, got %d", removed)
	}
}
