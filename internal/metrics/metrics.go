// Package metrics records check outcomes in a Prometheus registry. One-shot
// runs push the registry to a Pushgateway or write a node-exporter textfile;
// watch mode serves it over HTTP.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "sheetwatch"

// Recorder holds the collectors for one process.
type Recorder struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	updates       prometheus.Counter
	notifications *prometheus.CounterVec
	rows          prometheus.Gauge
	lastSuccess   prometheus.Gauge
	fetchDuration prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Sheet checks by outcome.",
		}, []string{"outcome"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Checks that found new or changed rows.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by sink and outcome.",
		}, []string{"sink", "outcome"}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sheet_rows",
			Help:      "Data rows in the last fetched snapshot.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful check.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent downloading and parsing the sheet.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	r.registry.MustRegister(r.checks, r.updates, r.notifications, r.rows, r.lastSuccess, r.fetchDuration)
	return r
}

// ObserveFetch records how long a fetch took
func (r *Recorder) ObserveFetch(d time.Duration) {
	r.fetchDuration.Observe(d.Seconds())
}

// CheckSucceeded records a completed check
func (r *Recorder) CheckSucceeded(rows int, hasUpdates bool, at time.Time) {
	r.checks.WithLabelValues("ok").Inc()
	r.rows.Set(float64(rows))
	r.lastSuccess.Set(float64(at.Unix()))
	if hasUpdates {
		r.updates.Inc()
	}
}

// CheckFailed records a check that ended in error
func (r *Recorder) CheckFailed() {
	r.checks.WithLabelValues("error").Inc()
}

// Notified records one sink's outcome
func (r *Recorder) Notified(sink string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.notifications.WithLabelValues(sink, outcome).Inc()
}

// Gatherer exposes the registry, mostly for tests
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Push sends the registry to a Pushgateway under job
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// WriteTextfile writes the registry for the node-exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
