package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(DownloadEvents, RangeRequests, WorkerFailures, BytesTransferred, ActiveDownloads)

	DownloadEvents.WithLabelValues("start").Inc()
	RangeRequests.WithLabelValues("ok").Add(2)
	WorkerFailures.WithLabelValues("connection").Inc()
	BytesTransferred.Add(4096)
	ActiveDownloads.Set(3)

	expectedEvents := `# HELP fetchd_download_events_total Count of download events processed by the reconciler.
# TYPE fetchd_download_events_total counter
fetchd_download_events_total{type="start"} 1
`
	if err := testutil.CollectAndCompare(DownloadEvents, strings.NewReader(expectedEvents)); err != nil {
		t.Fatalf("unexpected events metric: %v", err)
	}

	expectedRanges := `# HELP fetchd_range_requests_total Range requests issued by the fetcher, by result.
# TYPE fetchd_range_requests_total counter
fetchd_range_requests_total{result="ok"} 2
`
	if err := testutil.CollectAndCompare(RangeRequests, strings.NewReader(expectedRanges)); err != nil {
		t.Fatalf("unexpected range requests metric: %v", err)
	}

	expectedFailures := `# HELP fetchd_worker_failures_total Download workers that ended in the Error state, by failure kind.
# TYPE fetchd_worker_failures_total counter
fetchd_worker_failures_total{kind="connection"} 1
`
	if err := testutil.CollectAndCompare(WorkerFailures, strings.NewReader(expectedFailures)); err != nil {
		t.Fatalf("unexpected worker failures metric: %v", err)
	}

	if got := testutil.ToFloat64(BytesTransferred); got != 4096 {
		t.Fatalf("bytes transferred = %v, want 4096", got)
	}

	expectedGauge := `# HELP fetchd_active_downloads Number of sessions currently in the Downloading state.
# TYPE fetchd_active_downloads gauge
fetchd_active_downloads 3
`
	if err := testutil.CollectAndCompare(ActiveDownloads, strings.NewReader(expectedGauge)); err != nil {
		t.Fatalf("unexpected active downloads gauge: %v", err)
	}
}

func TestFetchLatencyHistogram(t *testing.T) {
	// Use a fresh histogram to avoid cross-test contamination
	h := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fetchd",
			Name:      "fetch_latency_seconds",
			Help:      "Time from issuing a range request to receiving response headers.",
		},
	)

	h.Observe(0.25)
	h.Observe(0.5)

	expected := `# HELP fetchd_fetch_latency_seconds Time from issuing a range request to receiving response headers.
# TYPE fetchd_fetch_latency_seconds histogram
fetchd_fetch_latency_seconds_bucket{le="0.005"} 0
fetchd_fetch_latency_seconds_bucket{le="0.01"} 0
fetchd_fetch_latency_seconds_bucket{le="0.025"} 0
fetchd_fetch_latency_seconds_bucket{le="0.05"} 0
fetchd_fetch_latency_seconds_bucket{le="0.1"} 0
fetchd_fetch_latency_seconds_bucket{le="0.25"} 1
fetchd_fetch_latency_seconds_bucket{le="0.5"} 2
fetchd_fetch_latency_seconds_bucket{le="1"} 2
fetchd_fetch_latency_seconds_bucket{le="2.5"} 2
fetchd_fetch_latency_seconds_bucket{le="5"} 2
fetchd_fetch_latency_seconds_bucket{le="10"} 2
fetchd_fetch_latency_seconds_bucket{le="+Inf"} 2
fetchd_fetch_latency_seconds_sum 0.75
fetchd_fetch_latency_seconds_count 2
`
	if err := testutil.CollectAndCompare(h, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected histogram: %v", err)
	}
}

func TestRegisterTwice(t *testing.T) {
	Register()
	Register()
}
