package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stowplan/internal/allocation"
)

func TestObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	res := allocation.Result{
		Failures: []allocation.Failure{
			{ItemID: "a", Reason: allocation.ReasonHeight},
			{ItemID: "b", Reason: allocation.ReasonHeight},
			{ItemID: "c", Reason: allocation.ReasonArea},
		},
		Summary: allocation.Summary{TotalAllocated: 4, OverallUtilization: 42.5},
	}
	m.ObserveRun(res, 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ItemsAllocated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsFailed.WithLabelValues("height")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsFailed.WithLabelValues("area")))
	assert.Equal(t, 42.5, testutil.ToFloat64(m.LastUtilization))
}

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	second.ObserveImport(3, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(first.RowsImported))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.RowsRejected))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRun(allocation.Result{}, time.Second)
	m.ObserveImport(1, 1)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	m.Runs.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stowplan_allocation_runs_total 1")
}

func TestInitTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{Enabled: true, ServiceName: "test", SampleRatio: 1, Output: &buf}, nil)
	require.NoError(t, err)

	_, span := StartSpan(ctx, "allocation.run", "upload", "u1")
	span.End()
	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), "allocation.run")

	shutdown, err = InitTracing(ctx, TracingConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))
}
