// Package memstore keeps the gift collection in process memory. It backs the
// demo backend and stands in for the remote store in tests.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/store"
)

var _ store.GiftStore = (*Store)(nil)

// Store is a mutex-guarded gift collection. Every mutation wakes all live
// queries, which then re-deliver their full result set.
type Store struct {
	mu        sync.RWMutex
	docs      map[string]gift.Gift
	changed   chan struct{}
	commitErr error
}

// New returns a store holding seed. Seeds without an ID get a generated one.
func New(seed ...gift.Gift) *Store {
	s := &Store{
		docs:    make(map[string]gift.Gift, len(seed)),
		changed: make(chan struct{}),
	}
	for _, g := range seed {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		s.docs[g.ID] = g
	}
	return s
}

// Subscribe delivers the gifts matching filter now and after every change.
func (s *Store) Subscribe(ctx context.Context, filter store.Filter) (<-chan store.Snapshot, store.CancelFunc, error) {
	ch, cancel := store.Watch(ctx, func(ctx context.Context, emit store.Emitter) {
		for {
			gifts, changed := s.query(filter)
			emit(store.Snapshot{Gifts: gifts})
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
		}
	})
	return ch, cancel, nil
}

func (s *Store) query(filter store.Filter) ([]gift.Gift, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gifts := make([]gift.Gift, 0, len(s.docs))
	for _, g := range s.docs {
		if filter.Match(g) {
			gifts = append(gifts, g)
		}
	}
	store.SortGifts(gifts)
	return gifts, s.changed
}

// Commit applies the batch atomically: all targets are checked before any is
// written.
func (s *Store) Commit(ctx context.Context, batch store.Batch) error {
	if err := batch.Validate(0); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitErr != nil {
		return s.commitErr
	}

	var taken []string
	for _, u := range batch.Updates {
		doc, ok := s.docs[u.ID]
		if !ok {
			return fmt.Errorf("%w: %s", store.ErrNotFound, u.ID)
		}
		if batch.RequireUnpurchased && doc.Purchased {
			taken = append(taken, u.ID)
		}
	}
	if len(taken) > 0 {
		return &store.TakenError{IDs: taken}
	}

	for _, u := range batch.Updates {
		doc := s.docs[u.ID]
		doc.Purchased = u.Purchased
		doc.PurchaserName = u.PurchaserName
		s.docs[u.ID] = doc
	}
	s.notifyLocked()
	return nil
}

// Insert adds gifts under fresh ids.
func (s *Store) Insert(ctx context.Context, gifts []gift.Gift) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(gifts))
	for _, g := range gifts {
		g.ID = uuid.NewString()
		s.docs[g.ID] = g
		ids = append(ids, g.ID)
	}
	if len(ids) > 0 {
		s.notifyLocked()
	}
	return ids, nil
}

// Get returns the stored document for id.
func (s *Store) Get(id string) (gift.Gift, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.docs[id]
	return g, ok
}

// FailCommits makes every following Commit return err without writing,
// simulating an unreachable store. A nil err restores normal commits.
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

func (s *Store) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
