// Package store defines the contract between giftlist and the remote document
// collection holding the registry: a live query that re-delivers the full
// matching result set on every change, and an atomic multi-document batch
// commit. Backends live in subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/five82/giftlist/internal/gift"
)

var (
	ErrNotFound           = errors.New("gift not found")
	ErrAlreadyPurchased   = errors.New("gift already purchased")
	ErrEmptyBatch         = errors.New("batch has no updates")
	ErrBatchTooLarge      = errors.New("batch exceeds store limit")
	ErrSubscriptionClosed = errors.New("subscription closed by store")
)

// TakenError lists gifts another visitor purchased before a conditional
// commit. It matches ErrAlreadyPurchased with errors.Is.
type TakenError struct {
	IDs []string
}

func (e *TakenError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAlreadyPurchased, strings.Join(e.IDs, ", "))
}

func (e *TakenError) Is(target error) bool {
	return target == ErrAlreadyPurchased
}

// Filter selects gifts by their purchased flag.
type Filter struct {
	Purchased bool
}

// Unpurchased matches gifts still available for selection.
func Unpurchased() Filter {
	return Filter{Purchased: false}
}

// Match reports whether g satisfies the filter.
func (f Filter) Match(g gift.Gift) bool {
	return g.Purchased == f.Purchased
}

// Snapshot is one delivery of a live query: either the complete result set
// or the error that prevented producing it.
type Snapshot struct {
	Gifts []gift.Gift
	Err   error
}

// CancelFunc releases a subscription. It is idempotent and returns once the
// producer has stopped.
type CancelFunc func()

// Update is a partial write to one gift document.
type Update struct {
	ID            string
	Purchased     bool
	PurchaserName string
}

// Batch is applied atomically: every update or none.
type Batch struct {
	Updates []Update
	// RequireUnpurchased fails the whole batch with *TakenError when any
	// target is already purchased at write time.
	RequireUnpurchased bool
}

// Validate checks the batch shape. A limit of zero means unbounded.
func (b Batch) Validate(limit int) error {
	if len(b.Updates) == 0 {
		return ErrEmptyBatch
	}
	if limit > 0 && len(b.Updates) > limit {
		return fmt.Errorf("%w: %d updates, limit %d", ErrBatchTooLarge, len(b.Updates), limit)
	}
	seen := make(map[string]struct{}, len(b.Updates))
	for _, u := range b.Updates {
		if strings.TrimSpace(u.ID) == "" {
			return fmt.Errorf("update has empty gift id")
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("gift %s appears twice in batch", u.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}

// IDs returns the target gift ids in batch order.
func (b Batch) IDs() []string {
	ids := make([]string, len(b.Updates))
	for i, u := range b.Updates {
		ids[i] = u.ID
	}
	return ids
}

// Subscriber opens live queries.
type Subscriber interface {
	Subscribe(ctx context.Context, filter Filter) (<-chan Snapshot, CancelFunc, error)
}

// Committer applies batches atomically.
type Committer interface {
	Commit(ctx context.Context, batch Batch) error
}

// Inserter adds new gift documents and returns their store-assigned ids.
type Inserter interface {
	Insert(ctx context.Context, gifts []gift.Gift) ([]string, error)
}

// GiftStore is the full remote collection surface.
type GiftStore interface {
	Subscriber
	Committer
	Inserter
}

// SortGifts orders gifts by name, then id, so snapshots compare stably.
func SortGifts(gifts []gift.Gift) {
	sort.Slice(gifts, func(i, j int) bool {
		if gifts[i].Name != gifts[j].Name {
			return gifts[i].Name < gifts[j].Name
		}
		return gifts[i].ID < gifts[j].ID
	})
}
