// Package memory provides in-memory implementations for testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/schemagate/domain/snapshot"
	"github.com/artpar/schemagate/ports"
)

// SnapshotStore is an in-memory implementation of ports.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps []snapshot.Snapshot
	byID  map[string]int
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byID: make(map[string]int),
	}
}

// Save stores a snapshot. Saving an existing ID replaces it.
func (s *SnapshotStore) Save(ctx context.Context, snap snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Document = append([]byte(nil), snap.Document...)
	if i, ok := s.byID[snap.ID]; ok {
		s.snaps[i] = snap
		return nil
	}
	s.byID[snap.ID] = len(s.snaps)
	s.snaps = append(s.snaps, snap)
	return nil
}

// Latest returns the newest snapshot for an API and format.
func (s *SnapshotStore) Latest(ctx context.Context, api, format string) (snapshot.Snapshot, bool, error) {
	list, err := s.List(ctx, snapshot.Filter{API: api, Format: format, Limit: 1})
	if err != nil || len(list) == 0 {
		return snapshot.Snapshot{}, false, err
	}
	return list[0], true, nil
}

// List returns snapshots matching the filter, newest first.
func (s *SnapshotStore) List(ctx context.Context, f snapshot.Filter) ([]snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []snapshot.Snapshot
	for i := len(s.snaps) - 1; i >= 0; i-- {
		snap := s.snaps[i]
		if f.API != "" && snap.API != f.API {
			continue
		}
		if f.Format != "" && snap.Format != f.Format {
			continue
		}
		result = append(result, snap)
	}

	// Later saves win ties between equal timestamps.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

// Get retrieves a snapshot by ID.
func (s *SnapshotStore) Get(ctx context.Context, id string) (snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return snapshot.Snapshot{}, snapshot.ErrNotFound
	}
	return s.snaps[i], nil
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
