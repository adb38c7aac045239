package state

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/five82/giftlist/internal/gift"
)

// Snapshot represents the latest gift list available to the UI.
type Snapshot struct {
	Gifts               []gift.Gift
	Loaded              bool // at least one result set has arrived
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the live query has failed repeatedly.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Loading reports whether the first result set is still outstanding.
func (s Snapshot) Loading() bool {
	return !s.Loaded && s.LastError == nil
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored gift list. When err is non-nil the previous list
// is kept but the error is recorded for visibility.
func (s *Store) Update(gifts []gift.Gift, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastUpdated = time.Now()
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Gifts = slices.Clone(gifts)
	s.snapshot.Loaded = true
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Reset forgets everything, so the next reader starts from a loading state.
func (s *Store) Reset() {
	s.mu.Lock()
	s.snapshot = Snapshot{}
	s.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Gifts = slices.Clone(s.snapshot.Gifts)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
