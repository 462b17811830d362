// Package observability exposes the Prometheus collectors of the service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Statistics outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeClientError = "client_error"
	OutcomeStoreError  = "store_error"
)

var (
	statisticsRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodlog",
		Subsystem: "statistics",
		Name:      "requests_total",
		Help:      "Statistics reports computed, by report kind and outcome.",
	}, []string{"kind", "outcome"})
	statisticsDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moodlog",
		Subsystem: "statistics",
		Name:      "duration_seconds",
		Help:      "Time spent building a statistics report, store read included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
	recordWrittenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moodlog",
		Subsystem: "records",
		Name:      "last_written_timestamp_seconds",
		Help:      "Unix timestamp of the most recent record create or update.",
	})
)

func init() {
	prometheus.MustRegister(statisticsRequests, statisticsDuration, recordWrittenGauge)
}

// ObserveStatistics records one statistics report attempt.
func ObserveStatistics(kind, outcome string, elapsed time.Duration) {
	statisticsRequests.WithLabelValues(kind, outcome).Inc()
	statisticsDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordWritten updates the record write watermark.
func RecordWritten(ts time.Time) {
	if ts.IsZero() {
		return
	}
	recordWrittenGauge.Set(float64(ts.Unix()))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
