package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenAppliesPragmas(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "stock.db"), BusyTimeout: 1000}
	db, err := cfg.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("got journal mode %q, want wal", mode)
	}
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("got %d max connections, want 1", got)
	}
}

func TestOpenFailsOnMissingDirectory(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "missing", "stock.db")}
	if _, err := cfg.Open(context.Background()); err == nil {
		t.Fatal("expected error for a path in a missing directory")
	}
}
