package db_test

import (
	"testing"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_CreatesAllFeedTables(t *testing.T) {
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	for _, table := range db.FeedTables {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.Migrate(database, db.SQLite))
	require.NoError(t, db.Migrate(database, db.SQLite))
}

func TestOpen_SQLite(t *testing.T) {
	database, dialect, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	assert.Equal(t, db.SQLite, dialect)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := db.Open("oracle", "whatever")
	require.Error(t, err)
}
