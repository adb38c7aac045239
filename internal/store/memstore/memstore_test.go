package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/store"
)

func seeded() *Store {
	return New(
		gift.Gift{ID: "g1", Name: "Blender", Image: "blender.jpg"},
		gift.Gift{ID: "g2", Name: "Mixer", Purchased: true, PurchaserName: "Bia"},
		gift.Gift{ID: "g3", Name: "Towels", Image: "towels.jpg"},
	)
}

func next(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return store.Snapshot{}
	}
}

func ids(gifts []gift.Gift) []string {
	out := make([]string, len(gifts))
	for i, g := range gifts {
		out[i] = g.ID
	}
	return out
}

func TestSubscribe_DeliversUnpurchasedAndFollowsChanges(t *testing.T) {
	s := seeded()
	ch, cancel, err := s.Subscribe(context.Background(), store.Unpurchased())
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, []string{"g1", "g3"}, ids(next(t, ch).Gifts))

	err = s.Commit(context.Background(), store.Batch{
		Updates:            []store.Update{{ID: "g1", Purchased: true, PurchaserName: "Carla"}},
		RequireUnpurchased: true,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"g3"}, ids(next(t, ch).Gifts))
}

func TestCommit_MarksPurchased(t *testing.T) {
	s := seeded()
	err := s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{
			{ID: "g1", Purchased: true, PurchaserName: "Ana"},
			{ID: "g3", Purchased: true, PurchaserName: "Ana"},
		},
		RequireUnpurchased: true,
	})
	require.NoError(t, err)

	for _, id := range []string{"g1", "g3"} {
		g, ok := s.Get(id)
		require.True(t, ok)
		require.True(t, g.Purchased)
		require.Equal(t, "Ana", g.PurchaserName)
	}
	g2, _ := s.Get("g2")
	require.Equal(t, "Bia", g2.PurchaserName)
}

func TestCommit_ConditionalIsAtomic(t *testing.T) {
	s := seeded()
	err := s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{
			{ID: "g1", Purchased: true, PurchaserName: "Ana"},
			{ID: "g2", Purchased: true, PurchaserName: "Ana"},
		},
		RequireUnpurchased: true,
	})
	require.ErrorIs(t, err, store.ErrAlreadyPurchased)

	var taken *store.TakenError
	require.True(t, errors.As(err, &taken))
	require.Equal(t, []string{"g2"}, taken.IDs)

	g1, _ := s.Get("g1")
	require.False(t, g1.Purchased, "g1 must be untouched when the batch fails")
	g2, _ := s.Get("g2")
	require.Equal(t, "Bia", g2.PurchaserName)
}

func TestCommit_OverwriteWins(t *testing.T) {
	s := seeded()
	err := s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{{ID: "g2", Purchased: true, PurchaserName: "Ana"}},
	})
	require.NoError(t, err)
	g2, _ := s.Get("g2")
	require.Equal(t, "Ana", g2.PurchaserName)
}

func TestCommit_UnknownIDFailsWholeBatch(t *testing.T) {
	s := seeded()
	err := s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{
			{ID: "g1", Purchased: true, PurchaserName: "Ana"},
			{ID: "nope", Purchased: true, PurchaserName: "Ana"},
		},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	g1, _ := s.Get("g1")
	require.False(t, g1.Purchased)
}

func TestCommit_InjectedFailureWritesNothing(t *testing.T) {
	s := seeded()
	boom := errors.New("network down")
	s.FailCommits(boom)

	err := s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{{ID: "g1", Purchased: true, PurchaserName: "Ana"}},
	})
	require.ErrorIs(t, err, boom)
	g1, _ := s.Get("g1")
	require.False(t, g1.Purchased)

	s.FailCommits(nil)
	require.NoError(t, s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{{ID: "g1", Purchased: true, PurchaserName: "Ana"}},
	}))
}

func TestInsert_AssignsIDsAndNotifies(t *testing.T) {
	s := New()
	ch, cancel, err := s.Subscribe(context.Background(), store.Unpurchased())
	require.NoError(t, err)
	defer cancel()
	require.Empty(t, next(t, ch).Gifts)

	got, err := s.Insert(context.Background(), []gift.Gift{{ID: "ignored", Name: "Kettle"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotEqual(t, "ignored", got[0])

	snap := next(t, ch)
	require.Len(t, snap.Gifts, 1)
	require.Equal(t, got[0], snap.Gifts[0].ID)
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	s := seeded()
	ch, cancel, err := s.Subscribe(context.Background(), store.Unpurchased())
	require.NoError(t, err)
	next(t, ch)

	cancel()
	_, ok := <-ch
	require.False(t, ok)

	// Mutations after cancel must not block on the dead subscription.
	require.NoError(t, s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{{ID: "g1", Purchased: true, PurchaserName: "Ana"}},
	}))
}
