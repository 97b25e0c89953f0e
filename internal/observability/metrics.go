package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stowplan/internal/allocation"
)

// Metrics holds the allocation and import collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	Runs            prometheus.Counter
	ItemsAllocated  prometheus.Counter
	ItemsFailed     *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastUtilization prometheus.Gauge
	RowsImported    prometheus.Counter
	RowsRejected    prometheus.Counter
}

// NewMetrics registers collectors against reg, defaulting to the global
// registry when nil. Registering twice against one registry reuses the
// existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	m := &Metrics{gatherer: gatherer}
	var err error
	if m.Runs, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stowplan_allocation_runs_total",
		Help: "Allocation runs completed.",
	})); err != nil {
		return nil, err
	}
	if m.ItemsAllocated, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stowplan_items_allocated_total",
		Help: "Item records placed into a zone.",
	})); err != nil {
		return nil, err
	}
	if m.ItemsFailed, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stowplan_items_failed_total",
		Help: "Item records that could not be placed, by failure reason.",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if m.RunDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stowplan_allocation_duration_seconds",
		Help:    "Engine time per allocation run.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})); err != nil {
		return nil, err
	}
	if m.LastUtilization, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stowplan_last_overall_utilization_percent",
		Help: "Overall floor utilization of the most recent run.",
	})); err != nil {
		return nil, err
	}
	if m.RowsImported, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stowplan_import_rows_total",
		Help: "Inventory rows accepted by imports.",
	})); err != nil {
		return nil, err
	}
	if m.RowsRejected, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stowplan_import_rows_rejected_total",
		Help: "Inventory rows skipped by imports.",
	})); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveRun records one finished allocation.
func (m *Metrics) ObserveRun(res allocation.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Runs.Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	m.ItemsAllocated.Add(float64(res.Summary.TotalAllocated))
	for reason, n := range res.FailuresByReason() {
		m.ItemsFailed.WithLabelValues(string(reason)).Add(float64(n))
	}
	m.LastUtilization.Set(res.Summary.OverallUtilization)
}

// ObserveImport records accepted and rejected row counts.
func (m *Metrics) ObserveImport(accepted, rejected int) {
	if m == nil {
		return
	}
	m.RowsImported.Add(float64(accepted))
	m.RowsRejected.Add(float64(rejected))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		var zero C
		return zero, err
	}
	return c, nil
}
