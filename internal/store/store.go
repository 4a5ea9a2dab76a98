// Package store holds the keyed in-memory entity maps that mirror server
// tables. Each store writes its full map through to durable local storage on
// every mutation so a session can be restored after a restart.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alexanderramin/sitesync/internal/kv"
	"github.com/alexanderramin/sitesync/internal/metrics"
	"github.com/alexanderramin/sitesync/internal/report"
)

const persistTimeout = 5 * time.Second

// Patch is a shallow set of top-level fields keyed by their JSON name.
type Patch map[string]json.RawMessage

// PatchOf builds a Patch from plain values.
func PatchOf(fields map[string]any) (Patch, error) {
	p := make(Patch, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding patch field %s: %w", k, err)
		}
		p[k] = b
	}
	return p, nil
}

// PatchFromJSON decodes a JSON object into a Patch.
func PatchFromJSON(raw []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding patch: %w", err)
	}
	return p, nil
}

// Store is a keyed map of one entity type. Safe for concurrent use.
type Store[T any] struct {
	name   string
	key    func(T) string
	parent func(T) string

	mu    sync.RWMutex
	items map[string]T

	kv   kv.Store
	sink report.Sink
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithParent sets the foreign key used by ByForeignKey.
func WithParent[T any](parent func(T) string) Option[T] {
	return func(s *Store[T]) { s.parent = parent }
}

// WithPersistence writes the map to kvs under the store's snapshot key after
// every mutation. Failures are delivered to sink.
func WithPersistence[T any](kvs kv.Store, sink report.Sink) Option[T] {
	return func(s *Store[T]) {
		s.kv = kvs
		s.sink = report.OrDiscard(sink)
	}
}

// New creates an empty store named name, keyed by key.
func New[T any](name string, key func(T) string, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		name:  name,
		key:   key,
		items: make(map[string]T),
		sink:  report.Discard{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the store name used for its snapshot key.
func (s *Store[T]) Name() string { return s.name }

// Set merges items into the store, replacing entries with the same key.
func (s *Store[T]) Set(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[s.key(it)] = it
	}
	s.commit("set")
}

// Add inserts or replaces item.
func (s *Store[T]) Add(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[s.key(item)] = item
	s.commit("add")
}

// Update shallow-merges patch into the entry with id. It reports whether the
// entry existed; an unknown id is a silent no-op.
func (s *Store[T]) Update(id string, patch Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return false, nil
	}
	merged, err := mergePatch(cur, patch)
	if err != nil {
		return true, fmt.Errorf("merging %s %s: %w", s.name, id, err)
	}
	s.items[id] = merged
	s.commit("update")
	return true, nil
}

// Mutate applies fn to a copy of the entry with id and stores the result.
// Like Update, an unknown id is a silent no-op.
func (s *Store[T]) Mutate(id string, fn func(*T)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return false
	}
	fn(&cur)
	s.items[id] = cur
	s.commit("mutate")
	return true
}

// Delete removes the entry with id.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	s.commit("delete")
}

// Get returns the entry with id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	return v, ok
}

// Has reports whether id is present.
func (s *Store[T]) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// All returns every entry ordered by key.
func (s *Store[T]) All() []T {
	return s.Filter(func(T) bool { return true })
}

// Filter returns the entries matching keep, ordered by key.
func (s *Store[T]) Filter(keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k, v := range s.items {
		if keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.items[k])
	}
	return out
}

// ByForeignKey returns the entries whose parent key equals parentID. It scans
// every entry; there is no secondary index.
func (s *Store[T]) ByForeignKey(parentID string) []T {
	if s.parent == nil {
		return nil
	}
	return s.Filter(func(v T) bool { return s.parent(v) == parentID })
}

// Len returns the number of entries.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns a copy of the underlying map.
func (s *Store[T]) Snapshot() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]T, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// Clear drops every entry and removes the persisted snapshot.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	metrics.StoreMutations.WithLabelValues(s.name, "clear").Inc()
	if s.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.kv.Remove(ctx, kv.SnapshotKey(s.name)); err != nil {
		s.persistFailed("clear", err)
	}
}

// Restore replaces the in-memory entries with the persisted snapshot. A
// missing snapshot leaves the store empty.
func (s *Store[T]) Restore(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	raw, ok, err := s.kv.Get(ctx, kv.SnapshotKey(s.name))
	if err != nil {
		return fmt.Errorf("reading %s snapshot: %w", s.name, err)
	}
	items := make(map[string]T)
	if ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("decoding %s snapshot: %w", s.name, err)
		}
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// commit must be called with the write lock held.
func (s *Store[T]) commit(op string) {
	metrics.StoreMutations.WithLabelValues(s.name, op).Inc()
	if s.kv == nil {
		return
	}
	raw, err := json.Marshal(s.items)
	if err != nil {
		s.persistFailed(op, fmt.Errorf("encoding snapshot: %w", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.kv.Set(ctx, kv.SnapshotKey(s.name), raw); err != nil {
		s.persistFailed(op, err)
	}
}

func (s *Store[T]) persistFailed(op string, err error) {
	metrics.StorePersistFailures.WithLabelValues(s.name).Inc()
	s.sink.Report(report.Failure{Kind: report.KindPersist, Op: op, Entity: s.name, Err: err})
}

func mergePatch[T any](cur T, patch Patch) (T, error) {
	var zero T
	raw, err := json.Marshal(cur)
	if err != nil {
		return zero, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return zero, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, err
	}
	return out, nil
}
