package kv

import (
	"context"
	"testing"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	sq, err := NewSQLite(context.Background(), database)
	require.NoError(t, err)
	return map[string]Store{"memory": NewMemory(), "sqlite": sq}
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "task-storage", []byte(`{"t1":{}}`)))
			require.NoError(t, s.Set(ctx, "task-storage", []byte(`{"t2":{}}`)))
			v, ok, err := s.Get(ctx, "task-storage")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"t2":{}}`, string(v))

			require.NoError(t, s.Remove(ctx, "task-storage"))
			_, ok, err = s.Get(ctx, "task-storage")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestWipeSnapshots_OnlySuffixAndLastActive(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, SnapshotKey("project"), []byte("{}")))
			require.NoError(t, s.Set(ctx, SnapshotKey("task"), []byte("{}")))
			require.NoError(t, s.Set(ctx, LastActiveKey, []byte("2025-01-01T00:00:00Z")))
			require.NoError(t, s.Set(ctx, "theme", []byte("dark")))
			require.NoError(t, s.Set(ctx, "-storage", []byte("edge")))

			removed, err := WipeSnapshots(ctx, s)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"project-storage", "task-storage", LastActiveKey}, removed)

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"theme", "-storage"}, keys)
		})
	}
}

func TestIsSnapshotKey(t *testing.T) {
	assert.True(t, IsSnapshotKey("organisation-member-storage"))
	assert.False(t, IsSnapshotKey("storage"))
	assert.False(t, IsSnapshotKey("-storage"))
	assert.False(t, IsSnapshotKey(LastActiveKey))
}
