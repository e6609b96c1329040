package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Simplici0/marginlab/internal/db"
)

func TestUpIsIdempotent(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	applied, err := Up(ctx, database)
	if err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if applied != 3 {
		t.Fatalf("expected 3 migrations applied, got %d", applied)
	}

	applied, err = Up(ctx, database)
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected no migrations on second run, got %d", applied)
	}

	version, err := Version(ctx, database)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected schema version 3, got %d", version)
	}

	for _, table := range []string{"users", "threshold_config", "calculations"} {
		var name string
		if err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
