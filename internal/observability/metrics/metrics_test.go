package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics scrape returned %d", rec.Code)
	}
	return rec.Body.String()
}

func assertSample(t *testing.T, body, sample string) {
	t.Helper()
	if !strings.Contains(body, sample) {
		t.Fatalf("expected sample %q in:\n%s", sample, body)
	}
}

func TestMiddlewareCountsByNormalizedPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, path := range []string{"/v1/documents/a/index", "/v1/documents/b/index"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m.Handler())
	assertSample(t, body, `nx_http_requests_total{method="GET",path="/v1/documents/{document_id}/index",service="api",status="404"} 2`)
	assertSample(t, body, `nx_http_in_flight_requests{service="api"} 0`)
}

func TestExtractionMetricsShareServerRegistry(t *testing.T) {
	server := NewHTTPServerMetrics("api")
	m := NewExtractionMetrics(server.Registry(), "api")

	m.ObserveState(domain.StateRetrieving, 10*time.Millisecond, nil)
	m.ObserveState(domain.StateDone, time.Second, nil)
	m.ObserveState(domain.StateFailed, time.Second, domain.WrapError(domain.ErrIndexNotFound, "load", errors.New("absent")))
	m.ObserveResult(&domain.ExtractionResult{}, domain.WrapError(domain.ErrConversationStore, "append", errors.New("down")))

	body := scrape(t, server.Handler())
	assertSample(t, body, `nx_extraction_outcomes_total{outcome="success",service="api"} 1`)
	assertSample(t, body, `nx_extraction_outcomes_total{outcome="index_not_found",service="api"} 1`)
	assertSample(t, body, `nx_extraction_turns_not_recorded_total{service="api"} 1`)
	assertSample(t, body, `nx_extraction_state_duration_seconds_count{service="api",state="retrieving",status="ok"} 1`)
}

func TestWorkerMetricsTreatsUnrecordedTurnAsSuccess(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartRequest()
	m.FinishRequest("worker", time.Second, domain.WrapError(domain.ErrConversationStore, "append", errors.New("down")))
	m.RecordRetry("worker", domain.WrapError(domain.ErrGeneration, "generate", errors.New("503")))

	body := scrape(t, m.Handler())
	assertSample(t, body, `nx_worker_requests_total{outcome="success",service="worker"} 1`)
	assertSample(t, body, `nx_worker_retries_total{kind="generation_error",service="worker"} 1`)
	assertSample(t, body, `nx_worker_requests_in_flight{service="worker"} 0`)
}
