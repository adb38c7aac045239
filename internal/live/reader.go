// Package live keeps the shared gift list current by consuming a store's live
// query in the background.
package live

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/five82/giftlist/internal/metrics"
	"github.com/five82/giftlist/internal/state"
	"github.com/five82/giftlist/internal/store"
)

// Reader owns at most one subscription at a time and mirrors every snapshot
// it delivers into a state.Store.
type Reader struct {
	source  store.Subscriber
	state   *state.Store
	filter  store.Filter
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	cancel  store.CancelFunc
	done    chan struct{}
	stopped *atomic.Bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithFilter replaces the default unpurchased filter.
func WithFilter(f store.Filter) Option {
	return func(r *Reader) { r.filter = f }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

// NewReader returns a stopped reader.
func NewReader(source store.Subscriber, st *state.Store, opts ...Option) *Reader {
	r := &Reader{
		source: source,
		state:  st,
		filter: store.Unpurchased(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Start clears the shared state and opens a subscription. It does nothing if
// the reader is already running. A failure to subscribe is also recorded in
// the state so the UI can offer a retry.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	r.state.Reset()
	ch, cancel, err := r.source.Subscribe(ctx, r.filter)
	if err != nil {
		r.state.Update(nil, err)
		r.metrics.IncSubscriptionError()
		r.logger.Error("subscribe to gifts failed", "error", err)
		return err
	}

	r.cancel = cancel
	r.done = make(chan struct{})
	r.stopped = &atomic.Bool{}
	go r.consume(ctx, ch, r.done, r.stopped)
	r.logger.Debug("gift subscription started")
	return nil
}

func (r *Reader) consume(ctx context.Context, ch <-chan store.Snapshot, done chan struct{}, stopped *atomic.Bool) {
	defer close(done)
	for snap := range ch {
		if snap.Err != nil {
			r.state.Update(nil, snap.Err)
			r.metrics.IncSubscriptionError()
			r.logger.Warn("gift subscription error", "error", snap.Err)
			continue
		}
		r.state.Update(snap.Gifts, nil)
		r.metrics.ObserveSnapshot(len(snap.Gifts))
	}
	if stopped.Load() || ctx.Err() != nil {
		return
	}
	r.state.Update(nil, store.ErrSubscriptionClosed)
	r.metrics.IncSubscriptionError()
	r.logger.Warn("gift subscription closed by store")
}

// Stop cancels the subscription and waits until no further snapshot can reach
// the state. It is safe to call when not running.
func (r *Reader) Stop() {
	r.mu.Lock()
	cancel, done, stopped := r.cancel, r.done, r.stopped
	r.cancel, r.done, r.stopped = nil, nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	stopped.Store(true)
	cancel()
	<-done
	r.logger.Debug("gift subscription stopped")
}

// Restart replaces the current subscription with a fresh one.
func (r *Reader) Restart(ctx context.Context) error {
	r.Stop()
	return r.Start(ctx)
}

// Running reports whether a subscription is open.
func (r *Reader) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}
