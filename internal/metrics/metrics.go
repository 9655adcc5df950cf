// Package metrics exposes Prometheus collectors for the indexing pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	remoteRequestsTotal       *prometheus.CounterVec
	remoteRequestDurationSecs *prometheus.HistogramVec
	pipelineBatchesTotal      *prometheus.CounterVec
	indexItemsReconciledTotal *prometheus.CounterVec
	brokerForwardedTotal      *prometheus.CounterVec
	publishJobPollsTotal      prometheus.Counter
	sessionPollAttemptsTotal  prometheus.Counter
	pipelineStageDurationSecs *prometheus.HistogramVec
	brokerRequestDurationSecs *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		remoteRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteindex_remote_requests_total",
				Help: "Total remote calls, labeled by surface (idc/rest) and status.",
			},
			[]string{"surface", "status"},
		)

		remoteRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteindex_remote_request_duration_seconds",
				Help:    "Histogram of remote call latencies, labeled by surface.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"surface"},
		)

		pipelineBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteindex_batches_total",
				Help: "Total batches issued, labeled by pipeline stage.",
			},
			[]string{"stage"},
		)

		indexItemsReconciledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteindex_items_reconciled_total",
				Help: "Index items written, labeled by operation (create/update).",
			},
			[]string{"op"},
		)

		brokerForwardedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteindex_broker_forwarded_total",
				Help: "Requests forwarded by the session broker, labeled by route and code.",
			},
			[]string{"route", "code"},
		)

		publishJobPollsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "siteindex_publish_job_polls_total",
				Help: "Total publish job status polls.",
			},
		)

		sessionPollAttemptsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "siteindex_session_poll_attempts_total",
				Help: "Total session-establishment poll attempts.",
			},
		)

		pipelineStageDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteindex_stage_duration_seconds",
				Help:    "Histogram of pipeline stage durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		)

		brokerRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteindex_broker_request_duration_seconds",
				Help:    "Histogram of broker request latencies, labeled by method, route and code.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route", "code"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRemoteCall records one remote call outcome.
func ObserveRemoteCall(surface, status string, duration time.Duration) {
	Init()
	remoteRequestsTotal.WithLabelValues(surface, status).Inc()
	remoteRequestDurationSecs.WithLabelValues(surface).Observe(duration.Seconds())
}

// ObserveBatch increments the batch counter for a pipeline stage.
func ObserveBatch(stage string) {
	Init()
	pipelineBatchesTotal.WithLabelValues(stage).Inc()
}

// ObserveReconcileOp counts a create or update write.
func ObserveReconcileOp(op string) {
	Init()
	indexItemsReconciledTotal.WithLabelValues(op).Inc()
}

// ObserveBrokerForward counts a request forwarded by the broker.
func ObserveBrokerForward(route string, code int) {
	Init()
	brokerForwardedTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObserveJobPoll counts one publish job status poll.
func ObserveJobPoll() {
	Init()
	publishJobPollsTotal.Inc()
}

// ObserveSessionPoll counts one session-establishment attempt.
func ObserveSessionPoll() {
	Init()
	sessionPollAttemptsTotal.Inc()
}

// ObserveHTTPRequest records the latency of one handled broker request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	brokerRequestDurationSecs.WithLabelValues(method, route, strconv.Itoa(code)).Observe(duration.Seconds())
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, duration time.Duration) {
	Init()
	pipelineStageDurationSecs.WithLabelValues(stage).Observe(duration.Seconds())
}
