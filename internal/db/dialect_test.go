package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind_Postgres(t *testing.T) {
	got := Postgres.Rebind(`UPDATE tasks SET spent = spent + ? WHERE id = ? AND status != '?'`)
	assert.Equal(t, `UPDATE tasks SET spent = spent + $1 WHERE id = $2 AND status != '?'`, got)
}

func TestRebind_SQLiteUnchanged(t *testing.T) {
	q := `SELECT * FROM tasks WHERE id = ?`
	assert.Equal(t, q, SQLite.Rebind(q))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("pgx")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestDDL_JSONColumns(t *testing.T) {
	assert.Equal(t, "data JSONB", Postgres.DDL("data {{json}}"))
	assert.Equal(t, "data TEXT", SQLite.DDL("data {{json}}"))
}
