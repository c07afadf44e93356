// Package metrics provides Prometheus metrics for the pdown API server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/pdown/internal/events"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdown_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdown_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Share task metrics
	sharesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdown_shares_total",
			Help: "Total share tasks by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	downloadJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdown_download_jobs_active",
			Help: "Number of download jobs still running",
		},
	)

	// Event metrics
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdown_events_total",
			Help: "Total events published on the bus",
		},
		[]string{"type"},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdown_bytes_downloaded_total",
			Help: "Total bytes of completed downloads",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric. path should be a route
// pattern, not the raw URL.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordShare records the outcome of one share task. code is the error code
// of a failed task and empty on success.
func RecordShare(operation, code string) {
	status := "success"
	if code != "" {
		status = code
	}
	sharesTotal.WithLabelValues(operation, status).Inc()
}

// DownloadJobStarted marks a download job as running.
func DownloadJobStarted() { downloadJobsActive.Inc() }

// DownloadJobFinished undoes DownloadJobStarted.
func DownloadJobFinished() { downloadJobsActive.Dec() }

// RecordEvent counts evt and the bytes of completed downloads.
func RecordEvent(evt events.Event) {
	eventsTotal.WithLabelValues(string(evt.Type)).Inc()
	if evt.Type == events.DownloadComplete && evt.Size > 0 {
		bytesDownloaded.Add(float64(evt.Size))
	}
}

// RecordEvents counts every event published on bus until stop is called.
func RecordEvents(bus *events.Bus) (stop func()) {
	id, ch := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range ch {
			RecordEvent(evt)
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			bus.Unsubscribe(id)
			<-done
		})
	}
}
