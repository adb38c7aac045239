// Package metrics exposes Prometheus instruments for the gift registry.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/five82/giftlist/internal/store"
)

// Commit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeTaken   = "taken"
	OutcomeError   = "error"
)

// Metrics tracks reservation commits and live query health.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Commits            *prometheus.CounterVec
	CommitDuration     prometheus.Histogram
	GiftsCommitted     prometheus.Counter
	Snapshots          prometheus.Counter
	SubscriptionErrors prometheus.Counter
	AvailableGifts     prometheus.Gauge
}

// New registers all instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftlist_commits_total",
			Help: "Reservation commits by outcome",
		}, []string{"outcome"}),
		CommitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "giftlist_commit_duration_seconds",
			Help:    "Duration of reservation batch commits",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GiftsCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_gifts_committed_total",
			Help: "Gifts marked purchased by successful commits",
		}),
		Snapshots: f.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_snapshots_total",
			Help: "Result sets delivered by the live query",
		}),
		SubscriptionErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_subscription_errors_total",
			Help: "Errors delivered by the live query",
		}),
		AvailableGifts: f.NewGauge(prometheus.GaugeOpts{
			Name: "giftlist_available_gifts",
			Help: "Unpurchased gifts in the latest result set",
		}),
	}
}

// ObserveCommit records one commit of n gifts. Call with time.Now() taken
// before the commit started.
func (m *Metrics) ObserveCommit(start time.Time, n int, err error) {
	if m == nil {
		return
	}
	m.CommitDuration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		m.Commits.WithLabelValues(OutcomeSuccess).Inc()
		m.GiftsCommitted.Add(float64(n))
	case errors.Is(err, store.ErrAlreadyPurchased):
		m.Commits.WithLabelValues(OutcomeTaken).Inc()
	default:
		m.Commits.WithLabelValues(OutcomeError).Inc()
	}
}

// ObserveSnapshot records a delivered result set of n gifts.
func (m *Metrics) ObserveSnapshot(n int) {
	if m == nil {
		return
	}
	m.Snapshots.Inc()
	m.AvailableGifts.Set(float64(n))
}

// IncSubscriptionError records a live query failure.
func (m *Metrics) IncSubscriptionError() {
	if m == nil {
		return
	}
	m.SubscriptionErrors.Inc()
}
