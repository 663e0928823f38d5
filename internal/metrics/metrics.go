package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DownloadEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchd",
			Name:      "download_events_total",
			Help:      "Count of download events processed by the reconciler.",
		},
		[]string{"type"},
	)

	RangeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchd",
			Name:      "range_requests_total",
			Help:      "Range requests issued by the fetcher, by result.",
		},
		[]string{"result"},
	)

	FetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fetchd",
			Name:      "fetch_latency_seconds",
			Help:      "Time from issuing a range request to receiving response headers.",
		},
	)

	BytesTransferred = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fetchd",
			Name:      "bytes_transferred_total",
			Help:      "Bytes written to local storage by download workers.",
		},
	)

	WorkerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchd",
			Name:      "worker_failures_total",
			Help:      "Download workers that ended in the Error state, by failure kind.",
		},
		[]string{"kind"},
	)

	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fetchd",
			Name:      "active_downloads",
			Help:      "Number of sessions currently in the Downloading state.",
		},
	)
)

var registerOnce sync.Once

// Register registers the fetchd metrics into the default registry. It is
// safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(DownloadEvents, RangeRequests, FetchLatency, BytesTransferred, WorkerFailures, ActiveDownloads)
	})
}
