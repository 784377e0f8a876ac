package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFetch(t *testing.T) {
	m := New()
	m.ObserveFetch(OutcomeOK, 3, time.Second)
	m.ObserveFetch(OutcomeUpstream, 1, 100*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues(OutcomeUpstream)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FetchPages), "failed fetches add no pages")
	assert.Greater(t, testutil.ToFloat64(m.LastSuccess), 0.0)
}

func TestObserveCacheAndSnapshot(t *testing.T) {
	m := New()
	m.ObserveCache(true)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.SetSnapshotSize(120, 45)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.Records))
	assert.Equal(t, 45.0, testutil.ToFloat64(m.CompletedRecords))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.ObserveFetch(OutcomeOK, 1, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `surveydash_fetch_total{outcome="ok"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch(OutcomeOK, 1, time.Second)
		m.ObserveCache(true)
		m.SetSnapshotSize(1, 1)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
