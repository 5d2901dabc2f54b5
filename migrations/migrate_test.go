package migrations

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestRunMigrations_Embedded(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db, "", zerolog.Nop()); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	for _, table := range []string{"agent_records", "agent_memories"} {
		if !tableExists(t, db, table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}

	// A second run is a no-op.
	if err := RunMigrations(db, "", zerolog.Nop()); err != nil {
		t.Fatalf("RunMigrations (second run): %v", err)
	}
}

func TestRunMigrations_FromDisk(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db, ".", zerolog.Nop()); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if !tableExists(t, db, "agent_records") {
		t.Error("Expected agent_records table")
	}
}

func TestRunMigrations_BadPath(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db, t.TempDir()+"/missing", zerolog.Nop()); err == nil {
		t.Fatal("Expected error for missing migrations directory")
	}
}
