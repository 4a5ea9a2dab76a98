// Package kv is the durable local key-value persistence used for store
// snapshots and the last-activity timestamp.
package kv

import (
	"context"
	"fmt"
	"strings"
)

const (
	// LastActiveKey holds the RFC3339 timestamp of the last user interaction.
	LastActiveKey = "lastActiveAt"

	// SnapshotSuffix marks keys holding persisted entity-store snapshots.
	SnapshotSuffix = "-storage"
)

// Store is a small synchronous key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// SnapshotKey returns the persistence key for the named entity store.
func SnapshotKey(name string) string {
	return name + SnapshotSuffix
}

// IsSnapshotKey reports whether key names an entity-store snapshot.
func IsSnapshotKey(key string) bool {
	return strings.HasSuffix(key, SnapshotSuffix) && len(key) > len(SnapshotSuffix)
}

// WipeSnapshots removes every snapshot key and the last-activity key, leaving
// unrelated keys untouched. It returns the removed keys.
func WipeSnapshots(ctx context.Context, s Store) ([]string, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	var removed []string
	for _, k := range keys {
		if !IsSnapshotKey(k) && k != LastActiveKey {
			continue
		}
		if err := s.Remove(ctx, k); err != nil {
			return removed, fmt.Errorf("removing %s: %w", k, err)
		}
		removed = append(removed, k)
	}
	return removed, nil
}
