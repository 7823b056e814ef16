package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/animals", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status passthrough, got %d", rec.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `wildhaven_http_requests_total{code="418",route="unknown"} 1`) {
		t.Fatalf("request counter missing:\n%s", body)
	}
}

func TestAuthzCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.AuthzDecision(true)
	metrics.AuthzDecision(false)
	metrics.AuthzDecision(false)
	metrics.DirectoryFallback()

	body := scrape(t, metrics)
	for _, want := range []string{
		`wildhaven_authz_decisions_total{decision="allow"} 1`,
		`wildhaven_authz_decisions_total{decision="deny"} 2`,
		`wildhaven_directory_fallback_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.AuthzDecision(true)
	metrics.DirectoryFallback()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if got := metrics.Middleware(next); got == nil {
		t.Fatal("nil metrics middleware should pass through")
	}
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics handler, got %d", rec.Code)
	}
}

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}
