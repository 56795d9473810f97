package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	m := New()

	m.AddAttempts(1500)
	m.AddAttempts(0)
	m.AddGenerated(10)
	m.JobStarted()
	m.JobStarted()
	m.JobFinished("found", 2*time.Second)
	m.SessionOpened()

	require.Equal(t, 1500.0, testutil.ToFloat64(m.attempts))
	require.Equal(t, 10.0, testutil.ToFloat64(m.generated))
	require.Equal(t, 1.0, testutil.ToFloat64(m.activeJobs))
	require.Equal(t, 1.0, testutil.ToFloat64(
		m.jobs.WithLabelValues("found"),
	))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sessions))

	m.SessionClosed()
	require.Zero(t, testutil.ToFloat64(m.sessions))
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.AddAttempts(1)
		m.AddGenerated(1)
		m.JobStarted()
		m.JobFinished("cancelled", time.Second)
		m.SessionOpened()
		m.SessionClosed()
	})
}

func TestHandlerExposition(t *testing.T) {
	t.Parallel()

	m := New()
	m.AddAttempts(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "btcvanity_attempts_total 42")
	require.Contains(t, string(body), "btcvanity_uptime_seconds")
}
