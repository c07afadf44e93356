package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/pdown/internal/events"
)

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", w.Code)
	}
	return w.Body.String()
}

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	RecordHTTPRequest(http.MethodPost, "/api/v1/list", http.StatusOK, 20*time.Millisecond)
	RecordShare("list", "")
	RecordShare("download", "TIMEOUT")
	RecordEvent(events.Event{Type: events.DownloadComplete, Size: 2048})

	body := scrape(t)
	for _, want := range []string{
		`pdown_http_requests_total{method="POST",path="/api/v1/list",status="200"}`,
		`pdown_http_request_duration_seconds_count{method="POST",path="/api/v1/list"}`,
		`pdown_shares_total{operation="list",status="success"}`,
		`pdown_shares_total{operation="download",status="TIMEOUT"}`,
		`pdown_events_total{type="downloadcomplete"}`,
		`pdown_bytes_downloaded_total`,
		`pdown_download_jobs_active`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %s", want)
		}
	}
}

func TestRecordEventsStopsCleanly(t *testing.T) {
	bus := events.NewBus()
	stop := RecordEvents(bus)
	bus.Publish(events.Event{Type: events.LoadStart})
	stop()
	stop()

	if bus.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d; want 0", bus.SubscriberCount())
	}
	if !strings.Contains(scrape(t), `pdown_events_total{type="loadstart"}`) {
		t.Fatal("loadstart event not counted")
	}
}
