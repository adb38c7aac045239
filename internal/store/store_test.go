package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/five82/giftlist/internal/gift"
)

func TestBatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		batch   Batch
		limit   int
		wantErr error
		wantMsg string
	}{
		{name: "empty", batch: Batch{}, wantErr: ErrEmptyBatch},
		{name: "too large", batch: Batch{Updates: []Update{{ID: "a"}, {ID: "b"}}}, limit: 1, wantErr: ErrBatchTooLarge},
		{name: "blank id", batch: Batch{Updates: []Update{{ID: " "}}}, wantMsg: "empty gift id"},
		{name: "duplicate", batch: Batch{Updates: []Update{{ID: "a"}, {ID: "a"}}}, wantMsg: "appears twice"},
		{name: "ok", batch: Batch{Updates: []Update{{ID: "a"}, {ID: "b"}}}, limit: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.batch.Validate(tt.limit)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantMsg != "":
				require.ErrorContains(t, err, tt.wantMsg)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestTakenErrorMatchesSentinel(t *testing.T) {
	err := error(&TakenError{IDs: []string{"g1", "g2"}})
	wrapped := errors.Join(errors.New("commit"), err)

	require.ErrorIs(t, wrapped, ErrAlreadyPurchased)
	var taken *TakenError
	require.True(t, errors.As(wrapped, &taken))
	require.Equal(t, []string{"g1", "g2"}, taken.IDs)
	require.Contains(t, err.Error(), "g1, g2")
}

func TestFilterMatch(t *testing.T) {
	f := Unpurchased()
	require.True(t, f.Match(gift.Gift{ID: "a"}))
	require.False(t, f.Match(gift.Gift{ID: "b", Purchased: true}))
}

func TestSortGifts(t *testing.T) {
	gifts := []gift.Gift{{ID: "2", Name: "Towels"}, {ID: "9", Name: "Blender"}, {ID: "1", Name: "Towels"}}
	SortGifts(gifts)
	require.Equal(t, []string{"9", "1", "2"}, []string{gifts[0].ID, gifts[1].ID, gifts[2].ID})
}

func TestWatch_LatestSnapshotWins(t *testing.T) {
	emitted := make(chan struct{})
	ch, cancel := Watch(context.Background(), func(ctx context.Context, emit Emitter) {
		for i := 1; i <= 3; i++ {
			emit(Snapshot{Gifts: make([]gift.Gift, i)})
		}
		close(emitted)
		<-ctx.Done()
	})
	defer cancel()

	<-emitted
	select {
	case snap := <-ch:
		require.Len(t, snap.Gifts, 3)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestWatch_CancelClosesChannelOnce(t *testing.T) {
	ch, cancel := Watch(context.Background(), func(ctx context.Context, emit Emitter) {
		emit(Snapshot{})
		<-ctx.Done()
	})

	cancel()
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestWatch_ProducerExitClosesChannel(t *testing.T) {
	ch, cancel := Watch(context.Background(), func(ctx context.Context, emit Emitter) {})
	defer cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after producer returned")
	}
}
