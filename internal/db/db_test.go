package db

import (
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Errorf("table runs: %v", err)
	}
	if d.Path() != ":memory:" {
		t.Errorf("Path() = %q", d.Path())
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	// Running migrate again should not fail.
	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(`INSERT INTO runs (id, started_at, input, status) VALUES ('a', '2026-01-01T00:00:00.000000000Z', 'q', 'done')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	d.Close()

	d2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d2.Close()
	var count int
	if err := d2.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
