package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amr-9/btcvanity/internal/job"
	"github.com/Amr-9/btcvanity/internal/metrics"
)

func scrapeMetrics(t *testing.T, m *metrics.Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(
		rec, httptest.NewRequest(http.MethodGet, "/metrics", nil),
	)
	require.Equal(t, http.StatusOK, rec.Code)

	return rec.Body.String()
}

func TestSessionBooksJobsInEitherOrder(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	ws := &wsSession{
		server:  &Server{cfg: Config{Metrics: m}},
		started: make(map[uint64]time.Time),
		early:   make(map[uint64]job.Event),
	}

	// The writer sees the first job end before start has recorded it.
	ws.finished(job.Event{
		Type:     job.EventFound,
		JobID:    1,
		Attempts: 5,
		Elapsed:  time.Second,
	})
	ws.track(1, time.Now())

	ws.track(2, time.Now())
	ws.finished(job.Event{
		Type:     job.EventCancelled,
		JobID:    2,
		Attempts: 3,
		Elapsed:  time.Second,
	})

	require.Empty(t, ws.started)
	require.Empty(t, ws.early)

	body := scrapeMetrics(t, m)
	require.Contains(t, body, "btcvanity_active_jobs 0")
	require.Contains(t, body, "btcvanity_attempts_total 8")
	require.Contains(t, body, `btcvanity_jobs_total{outcome="found"} 1`)
	require.Contains(t, body, `btcvanity_jobs_total{outcome="cancelled"} 1`)
}
