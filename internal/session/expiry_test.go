package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/sitesync/internal/aggregate"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/kv"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/store"
)

func newExpiryRig(t *testing.T, now time.Time) (*Hydrator, *store.Stores, kv.Store, *report.Collector) {
	t.Helper()
	kvs := kv.NewMemory()
	sink := &report.Collector{}
	stores := store.NewStores(kvs, sink)
	h := New(nil, stores, aggregate.NewEngine(stores), kvs,
		WithClock(func() time.Time { return now }),
		WithSink(sink))
	return h, stores, kvs, sink
}

func TestCheckExpiry_WipesSnapshotsAfterThreshold(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	h, stores, kvs, _ := newExpiryRig(t, now)

	stores.Projects.Add(domain.Project{ID: "p1", Name: "Riverside"})
	require.NoError(t, kvs.Set(ctx, "theme", []byte("dark")))
	require.NoError(t, kvs.Set(ctx, kv.LastActiveKey, []byte(now.Add(-25*time.Hour).Format(time.RFC3339Nano))))

	expired, err := h.CheckExpiry(ctx)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, 0, stores.Projects.Len())

	keys, err := kvs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"theme"}, keys)
	assert.Equal(t, StateIdle, h.State())
}

func TestCheckExpiry_WithinThresholdKeepsData(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	h, stores, kvs, _ := newExpiryRig(t, now)

	stores.Projects.Add(domain.Project{ID: "p1"})
	require.NoError(t, kvs.Set(ctx, kv.LastActiveKey, []byte(now.Add(-23*time.Hour).Format(time.RFC3339Nano))))

	expired, err := h.CheckExpiry(ctx)
	require.NoError(t, err)
	assert.False(t, expired)
	_, ok, err := kvs.Get(ctx, kv.SnapshotKey(store.NameProject))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckExpiry_MissingTimestampIsFresh(t *testing.T) {
	ctx := context.Background()
	h, stores, _, _ := newExpiryRig(t, time.Now())
	stores.Projects.Add(domain.Project{ID: "p1"})

	expired, err := h.CheckExpiry(ctx)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, 1, stores.Projects.Len())
}

func TestCheckExpiry_UnreadableTimestampExpires(t *testing.T) {
	ctx := context.Background()
	h, stores, kvs, sink := newExpiryRig(t, time.Now())
	stores.Projects.Add(domain.Project{ID: "p1"})
	require.NoError(t, kvs.Set(ctx, kv.LastActiveKey, []byte("yesterday-ish")))

	expired, err := h.CheckExpiry(ctx)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Len(t, sink.ByKind(report.KindConsistency), 1)
}

func TestTouch_RearmsTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	h, _, kvs, _ := newExpiryRig(t, now)

	require.NoError(t, h.Touch(ctx))
	raw, ok, err := kvs.Get(ctx, kv.LastActiveKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, now.Format(time.RFC3339Nano), string(raw))

	expired, err := h.CheckExpiry(ctx)
	require.NoError(t, err)
	assert.False(t, expired)
}
