package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(GeneratorFallbacks.WithLabelValues("enrich"))
	GeneratorFallbacks.WithLabelValues("enrich").Inc()
	if got := testutil.ToFloat64(GeneratorFallbacks.WithLabelValues("enrich")); got != before+1 {
		t.Fatalf("fallbacks = %v, want %v", got, before+1)
	}
}

func TestObserveStage(t *testing.T) {
	ObserveStage("filter", time.Now().Add(-10*time.Millisecond))
	if n := testutil.CollectAndCount(StageDuration); n == 0 {
		t.Fatal("no stage series collected")
	}
}

func TestHandlerExposesAdvisorMetrics(t *testing.T) {
	CandidatesRejected.WithLabelValues("above budget").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "advisor_candidates_rejected_total") {
		t.Fatal("rejected counter missing from exposition")
	}
}
