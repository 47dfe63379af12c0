package store

import (
	"sync"

	"github.com/leggler/PV-Aggregator/internal/core/domain"
)

// Store holds the currently published aggregate snapshot plus the
// per-source status views captured with it. One writer (the collector)
// swaps complete values in; any number of readers get consistent copies.
// Snapshots are immutable values, so a reader can never observe fields
// from two different cycles.
type Store struct {
	mu       sync.RWMutex
	current  domain.Snapshot
	statuses []domain.SourceStatus
}

// NewStore returns a store holding an all-zero snapshot, which is what
// readers see until the first poll cycle completes.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) Publish(snapshot domain.Snapshot, statuses []domain.SourceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snapshot
	s.statuses = statuses
}

func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) SourceStatuses() []domain.SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SourceStatus, len(s.statuses))
	copy(out, s.statuses)
	return out
}
