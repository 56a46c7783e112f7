package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg         *prometheus.Registry
	Records     *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oficina_import_records_total",
		Help: "Imported records by outcome.",
	}, []string{"outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oficina_import_runs_total",
		Help: "Import runs by detected format and result.",
	}, []string{"format", "result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oficina_import_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(records, runs, duration)
	return &Registry{reg: r, Records: records, Runs: runs, RunDuration: duration}
}

// The observe helpers accept a nil receiver so callers can run without metrics.

func (r *Registry) ObserveRecord(outcome string) {
	if r == nil {
		return
	}
	r.Records.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveRun(format, result string, took time.Duration) {
	if r == nil {
		return
	}
	r.Runs.WithLabelValues(format, result).Inc()
	r.RunDuration.Observe(took.Seconds())
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
