package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/giftlist/internal/store"
)

func TestObserveCommitOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	start := time.Now()

	m.ObserveCommit(start, 3, nil)
	m.ObserveCommit(start, 2, &store.TakenError{IDs: []string{"a"}})
	m.ObserveCommit(start, 1, errors.New("network"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues(OutcomeTaken)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues(OutcomeError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GiftsCommitted))
}

func TestObserveSnapshotSetsGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSnapshot(5)
	m.ObserveSnapshot(4)
	m.IncSubscriptionError()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Snapshots))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.AvailableGifts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionErrors))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveCommit(time.Now(), 1, nil)
		m.ObserveSnapshot(1)
		m.IncSubscriptionError()
	})
}

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "giftlist_available_gifts")
	assert.Contains(t, names, "giftlist_commit_duration_seconds")
}
