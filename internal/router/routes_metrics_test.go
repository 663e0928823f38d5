package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tinoosan/fetchd/internal/metrics"
)

func TestMetricsEndpointEmitsFamilies(t *testing.T) {
	// Register collectors and prime a couple of samples
	metrics.Register()
	metrics.DownloadEvents.WithLabelValues("start").Inc()
	metrics.FetchLatency.Observe(0.02)
	metrics.RangeRequests.WithLabelValues("ok").Inc()
	metrics.ActiveDownloads.Set(2)

	r := New(discard(), &fakeDownloadSvc{}, &fakeDownloader{}, "tok")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, family := range []string{
		"fetchd_download_events_total",
		"fetchd_fetch_latency_seconds_count",
		"fetchd_range_requests_total",
		"fetchd_active_downloads",
	} {
		if !strings.Contains(body, family) {
			t.Fatalf("missing %s in metrics: %s", family, body)
		}
	}
}
