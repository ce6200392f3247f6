package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

func TestNormalizePathReplacesIdentifiers(t *testing.T) {
	cases := map[string]string{
		"/v1/assessments":                "/v1/assessments",
		"/v1/assessments/abc":            "/v1/assessments/{id}",
		"/v1/assessments/abc/answers/q7": "/v1/assessments/{id}/answers/{question_id}",
		"/v1/assessments/abc/start":      "/v1/assessments/{id}/start",
		"/v1/documents/d1/content":       "/v1/documents/{id}/content",
		"/v1/tasks/t1/complete":          "/v1/tasks/{id}/complete",
		"/healthz":                       "/healthz",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareCountsByNormalizedPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/assessments/"+id+"/start", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodPost, "/v1/assessments/{id}/start", "202"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}

func TestWorkflowObserverLabels(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.ObserveRemoteCall("assessment-questions", time.Second, nil)
	m.ObserveRemoteCall("assessment-questions", time.Second, domain.WrapError(domain.ErrRemoteEmptyResponse, "call", errors.New("empty")))
	m.ObserveRemoteCall("assessment-analysis", time.Second, domain.WrapError(domain.ErrRemoteApplication, "call", errors.New("quota")))
	m.ObserveTransition(domain.StepQuestions)
	m.ObserveProgressTick(domain.StageAnalysis)
	m.ObserveBreakerState("edgefn.assessment-analysis", gobreaker.StateOpen)

	if v := testutil.ToFloat64(m.remoteCallsTotal.WithLabelValues("api", "assessment-questions", "success")); v != 1 {
		t.Fatalf("unexpected success count %v", v)
	}
	if v := testutil.ToFloat64(m.remoteCallsTotal.WithLabelValues("api", "assessment-questions", "empty")); v != 1 {
		t.Fatalf("unexpected empty count %v", v)
	}
	if v := testutil.ToFloat64(m.remoteCallsTotal.WithLabelValues("api", "assessment-analysis", "application_error")); v != 1 {
		t.Fatalf("unexpected application error count %v", v)
	}
	if v := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("api", string(domain.StepQuestions))); v != 1 {
		t.Fatalf("unexpected transition count %v", v)
	}
	if v := testutil.ToFloat64(m.progressTicksTotal.WithLabelValues("api", "analysis")); v != 1 {
		t.Fatalf("unexpected tick count %v", v)
	}
	if v := testutil.ToFloat64(m.breakerState.WithLabelValues("api", "edgefn.assessment-analysis")); v != 2 {
		t.Fatalf("unexpected breaker state %v", v)
	}
}
