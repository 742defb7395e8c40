package store

import (
	"database/sql"
	"testing"

	"github.com/covau-dev/covau/internal/database"
)

// openMemoryDB opens a fresh in-memory database with migrations applied,
// good for exactly one test (sqlite's ":memory:" DSN is per-connection,
// so pool size is pinned to 1 to keep every statement on the same db).
func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db
}
