package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	RequestsTotal.WithLabelValues("GET", "GET /", "2xx").Inc()
	RequestDuration.WithLabelValues("GET", "GET /").Observe(0.1)
	QueriesTotal.WithLabelValues("exporters", "ok").Inc()
	SearchDuration.WithLabelValues("pinecone", "exporters", "ok").Observe(0.1)
	SearchHits.WithLabelValues("exporters").Observe(5)
	LLMRequestsTotal.WithLabelValues("openai", "ok").Inc()
	LLMLatency.WithLabelValues("openai").Observe(1)
	RateLimitRejectedTotal.WithLabelValues("default").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"tradelens_http_requests_total":           false,
		"tradelens_http_request_duration_seconds": false,
		"tradelens_http_requests_inflight":        false,
		"tradelens_queries_total":                 false,
		"tradelens_search_duration_seconds":       false,
		"tradelens_search_hits":                   false,
		"tradelens_llm_requests_total":            false,
		"tradelens_llm_latency_seconds":           false,
		"tradelens_ratelimit_rejected_total":      false,
	}

	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

// TestMiddlewareUsesRoutePattern verifies that the route label is the mux
// pattern rather than the raw path.
func TestMiddlewareUsesRoutePattern(t *testing.T) {
	before := counterValue(t, RequestsTotal, "GET", "GET /v1/history/{id}", "2xx")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := MetricsMiddleware(mux)

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest("GET", "/v1/history/"+id, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	after := counterValue(t, RequestsTotal, "GET", "GET /v1/history/{id}", "2xx")
	if after-before != 2 {
		t.Errorf("expected request count to increase by 2, got delta=%f", after-before)
	}
}

// TestMiddlewareUnmatchedRoute verifies the fallback label for handlers
// that are not served through a mux.
func TestMiddlewareUnmatchedRoute(t *testing.T) {
	before := histogramCount(t, RequestDuration, "POST", "unmatched")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/", nil))

	after := histogramCount(t, RequestDuration, "POST", "unmatched")
	if after-before != 1 {
		t.Errorf("expected histogram sample count to increase by 1, got delta=%d", after-before)
	}
}

// TestMiddlewareCapturesStatusCode verifies that non-200 status codes are
// captured correctly in the status label.
func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "POST", "unmatched", "5xx")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/", nil))

	after := counterValue(t, RequestsTotal, "POST", "unmatched", "5xx")
	if after-before != 1 {
		t.Errorf("expected 5xx count to increase by 1, got delta=%f", after-before)
	}
}

// TestMiddlewareInflightGauge verifies the in-flight gauge is raised while
// the handler runs and restored afterwards.
func TestMiddlewareInflightGauge(t *testing.T) {
	baseline := gaugeValue(t, InflightRequests)

	var during float64
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = gaugeValue(t, InflightRequests)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if during != baseline+1 {
		t.Errorf("gauge during request = %f, want %f", during, baseline+1)
	}
	if after := gaugeValue(t, InflightRequests); after != baseline {
		t.Errorf("gauge after request = %f, want %f", after, baseline)
	}
}

// TestStatusWriterFlush verifies that the statusWriter Flush method
// delegates to the underlying writer when it implements http.Flusher.
func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.Flush()

	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
