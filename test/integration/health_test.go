package integration

import (
	"net/http"
	"strings"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/healthz")
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "ok") {
		t.Errorf("body = %q, want to contain 'ok'", body)
	}
}

func TestReadyEndpointChecksHistory(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/readyz")
	readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with an open SQLite store, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpointNoAuth(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/metrics")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "tradelens_http_requests_inflight") {
		t.Error("metrics output missing tradelens gauges")
	}
}
