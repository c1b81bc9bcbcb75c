package instrument

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetrics(t *testing.T) {
	m := NewRunMetrics()

	for range 3 {
		m.TrialCompleted("frobenius_norm_difference")
	}
	m.RunFinished("frobenius_norm_difference", "ok", 250*time.Millisecond)
	m.RunFinished("frobenius_norm_difference", "cancelled", time.Second)
	m.RequestServed("/api/v1/compare", "200")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.trialsTotal.WithLabelValues("frobenius_norm_difference")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("frobenius_norm_difference", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("frobenius_norm_difference", "cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpTotal.WithLabelValues("/api/v1/compare", "200")))
}

func TestRunMetrics_IndependentRegistries(t *testing.T) {
	a := NewRunMetrics()
	b := NewRunMetrics()
	a.TrialCompleted("x")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.trialsTotal.WithLabelValues("x")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.trialsTotal.WithLabelValues("x")))
}

func TestRunMetrics_Handler(t *testing.T) {
	m := NewRunMetrics()
	m.TrialCompleted("degree_difference")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `popconn_permutation_trials_total{metric="degree_difference"} 1`)
}
