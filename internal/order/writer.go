// Package order turns a finalised gift selection into one atomic reservation
// commit.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/metrics"
	"github.com/five82/giftlist/internal/store"
)

var ErrNoPurchaser = errors.New("purchaser name is required")

// Writer marks selected gifts purchased in the remote store.
type Writer struct {
	committer store.Committer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	overwrite bool
}

// Option configures a Writer.
type Option func(*Writer)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// WithOverwrite drops the unpurchased precondition, so a concurrent buyer's
// attribution is silently replaced.
func WithOverwrite(overwrite bool) Option {
	return func(w *Writer) { w.overwrite = overwrite }
}

func NewWriter(c store.Committer, opts ...Option) *Writer {
	w := &Writer{
		committer: c,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Confirm commits purchased = true and purchaserName = purchaser for every
// item in a single batch. Either all items are reserved or none are.
func (w *Writer) Confirm(ctx context.Context, purchaser string, items []gift.Selected) error {
	purchaser = strings.TrimSpace(purchaser)
	if purchaser == "" {
		return ErrNoPurchaser
	}
	if len(items) == 0 {
		return gift.ErrEmptySelection
	}

	batch := BuildBatch(purchaser, items, !w.overwrite)
	ids := batch.IDs()

	start := time.Now()
	err := w.committer.Commit(ctx, batch)
	w.metrics.ObserveCommit(start, len(items), err)
	if err != nil {
		var taken *store.TakenError
		if errors.As(err, &taken) {
			w.logger.Warn("reservation lost race", "purchaser", purchaser, "gift_ids", ids, "taken_ids", taken.IDs)
		} else {
			w.logger.Error("reservation commit failed", "purchaser", purchaser, "gift_ids", ids, "error", err)
		}
		return fmt.Errorf("commit reservation: %w", err)
	}

	w.logger.Info("reservation committed", "purchaser", purchaser, "gift_ids", ids, "duration", time.Since(start))
	return nil
}

// BuildBatch returns the update batch reserving items for purchaser.
func BuildBatch(purchaser string, items []gift.Selected, requireUnpurchased bool) store.Batch {
	updates := make([]store.Update, 0, len(items))
	for _, it := range items {
		updates = append(updates, store.Update{
			ID:            it.ID,
			Purchased:     true,
			PurchaserName: purchaser,
		})
	}
	return store.Batch{Updates: updates, RequireUnpurchased: requireUnpurchased}
}
