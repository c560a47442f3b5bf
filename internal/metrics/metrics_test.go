package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveHelpers(t *testing.T) {
	Init()

	ObserveDiscovered(3)
	require.Equal(t, 3.0, testutil.ToFloat64(conceptsDiscoveredTotal))

	ObserveCapture("succeeded")
	ObserveCapture("failed")
	require.Equal(t, 1.0, testutil.ToFloat64(capturesTotal.WithLabelValues("succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(capturesTotal.WithLabelValues("failed")))

	// Hits and refreshes are recorded under distinct outcomes.
	ObserveCacheLookup("hit")
	ObserveCacheLookup("hit")
	ObserveCacheLookup("refresh")
	require.Equal(t, 2.0, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("refresh")))

	ObserveRun("succeeded")
	require.Equal(t, 1.0, testutil.ToFloat64(runsTotal.WithLabelValues("succeeded")))
	require.Equal(t, 0.0, testutil.ToFloat64(runsTotal.WithLabelValues("failed")))
}
