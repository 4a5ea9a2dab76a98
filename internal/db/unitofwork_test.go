package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openUoW(t *testing.T) (*sql.DB, *db.TxUnitOfWork) {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database, db.NewUnitOfWork(database, db.SQLite)
}

func insertProfile(ctx context.Context, tx db.DBTX, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO profiles (id, created_at) VALUES (?, '2025-01-01T00:00:00Z')`, id)
	return err
}

func profileCount(t *testing.T, database *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n))
	return n
}

func TestWithinTx_Commits(t *testing.T) {
	database, uow := openUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProfile(ctx, tx, "u1"); err != nil {
			return err
		}
		return insertProfile(ctx, tx, "u2")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, profileCount(t, database))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	database, uow := openUoW(t)
	boom := errors.New("second write refused")

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProfile(ctx, tx, "u1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, profileCount(t, database))
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	database, uow := openUoW(t)

	assert.PanicsWithValue(t, "mid-write", func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_ = insertProfile(ctx, tx, "u1")
			panic("mid-write")
		})
	})
	assert.Zero(t, profileCount(t, database))
}
