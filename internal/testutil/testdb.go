package testutil

import (
	"database/sql"
	"testing"

	"github.com/alexanderramin/sitesync/internal/db"
)

// NewTestDB opens a migrated in-memory SQLite backend through the same path
// production uses. It is closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, dialect, err := db.Open(string(db.SQLite), ":memory:")
	if err != nil {
		t.Fatalf("opening test backend: %v", err)
	}
	if dialect != db.SQLite {
		t.Fatalf("test backend dialect = %s, want sqlite", dialect)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// NewTestUoW wraps database in the SQLite unit of work.
func NewTestUoW(database *sql.DB) db.UnitOfWork {
	return db.NewUnitOfWork(database, db.SQLite)
}
