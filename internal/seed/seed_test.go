package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/marginlab/internal/db"
	"github.com/Simplici0/marginlab/internal/margin"
	"github.com/Simplici0/marginlab/internal/migrations"
)

func TestRunIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if _, err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := Config{
		AdminEmail:    "admin@marginlab.test",
		AdminPassword: "12345",
		Thresholds:    margin.DefaultThresholds(),
	}

	for i := 0; i < 5; i++ {
		stats, err := Run(ctx, database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 2 {
				t.Fatalf("expected 2 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM users WHERE email = ?`, "admin@marginlab.test", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM threshold_config WHERE id = 1`, nil, 1)

	var hash string
	if err := database.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, "admin@marginlab.test").Scan(&hash); err != nil {
		t.Fatalf("query admin hash: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("12345")); err != nil {
		t.Fatalf("expected admin hash to match password: %v", err)
	}
}

func TestRunSkipsAdminWithoutCredentials(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "seed-noadmin.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if _, err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	stats, err := Run(ctx, database, Config{Thresholds: margin.DefaultThresholds()})
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Inserts != 1 {
		t.Fatalf("expected only the threshold insert, got %d", stats.Inserts)
	}
	assertCount(t, database, `SELECT COUNT(*) FROM users`, nil, 0)
}

func TestRunRejectsInvalidThresholds(t *testing.T) {
	th := margin.DefaultThresholds()
	th.MaxReturnRate = -1

	if _, err := Run(context.Background(), nil, Config{Thresholds: th}); err == nil {
		t.Fatalf("expected invalid thresholds to fail before touching the database")
	}
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
