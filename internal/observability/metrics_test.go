package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.HeartbeatMisses.WithLabelValues("comp-a"))
	RecordHeartbeatMiss("comp-a")
	RecordHeartbeatMiss("comp-a")
	after := testutil.ToFloat64(DefaultMetrics.HeartbeatMisses.WithLabelValues("comp-a"))
	if after-before != 2 {
		t.Errorf("heartbeat misses delta = %f, want 2", after-before)
	}

	RecordRun("completed", 5*time.Second)
	RecordMergeTotals(100, 10, 100)
	RecordSimulationTotals(8, 2, 50, 0)
	RecordFrameLatency(3 * time.Millisecond)
	RecordSnapshotPersisted()

	if got := testutil.ToFloat64(DefaultMetrics.OpenInterest); got != 0 {
		t.Errorf("open interest gauge = %f, want 0", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	RecordComponentFailure("comp-b")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("metrics endpoint returned empty body")
	}
}
