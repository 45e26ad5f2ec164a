package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rhuss/tradelens/pkg/api"
)

func TestPinecone_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/records/namespaces/importers/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Api-Key"); got != "pc-test" {
			t.Errorf("Api-Key = %q, want pc-test", got)
		}
		if got := r.Header.Get("X-Pinecone-API-Version"); got != "2025-01" {
			t.Errorf("X-Pinecone-API-Version = %q, want 2025-01", got)
		}

		var req pineconeSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Query.Inputs["text"] != "buyers of cocoa" {
			t.Errorf("inputs.text = %q", req.Query.Inputs["text"])
		}
		if req.Query.TopK != 5 {
			t.Errorf("top_k = %d, want 5", req.Query.TopK)
		}
		if len(req.Fields) != 2 || req.Fields[0] != "company" {
			t.Errorf("fields = %v", req.Fields)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"result": {"hits": [
				{"_id": "imp-17", "_score": 0.91, "fields": {"company": "Cacao Trade BV", "country": "NL"}},
				{"_id": "imp-3", "_score": 0.77, "fields": {"company": "Choco SA", "country": "BE"}}
			]},
			"usage": {"read_units": 6, "embed_total_tokens": 4}
		}`))
	}))
	defer server.Close()

	p, err := NewPinecone(PineconeConfig{
		APIKey:    "pc-test",
		IndexHost: server.URL,
		Fields:    []string{"company", "country"},
	})
	if err != nil {
		t.Fatalf("NewPinecone() error: %v", err)
	}

	hits, err := p.Search(context.Background(), api.NamespaceImporters, "buyers of cocoa", 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "imp-17" || hits[0].Score != 0.91 {
		t.Errorf("hits[0] = %+v", hits[0])
	}
	if hits[0].Namespace != api.NamespaceImporters {
		t.Errorf("hits[0].Namespace = %q", hits[0].Namespace)
	}
	if hits[1].Fields["company"] != "Choco SA" {
		t.Errorf("hits[1].Fields = %v", hits[1].Fields)
	}
}

func TestPinecone_SearchMissingResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"usage": {"read_units": 1}}`))
	}))
	defer server.Close()

	p, _ := NewPinecone(PineconeConfig{APIKey: "k", IndexHost: server.URL})
	hits, err := p.Search(context.Background(), api.NamespaceExporters, "anything", 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestPinecone_ResolvesHostOnce(t *testing.T) {
	var describeCalls atomic.Int32

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"hits": []}}`))
	}))
	defer data.Close()

	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		describeCalls.Add(1)
		if r.Method != http.MethodGet || r.URL.Path != "/indexes/trade-intel" {
			t.Errorf("unexpected control plane call %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"name": "trade-intel", "host": data.URL})
	}))
	defer control.Close()

	p, err := NewPinecone(PineconeConfig{
		APIKey:        "k",
		IndexName:     "trade-intel",
		ControllerURL: control.URL,
	})
	if err != nil {
		t.Fatalf("NewPinecone() error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := p.Search(context.Background(), api.NamespaceGlobalNews, "port strikes", 5); err != nil {
			t.Fatalf("Search() error: %v", err)
		}
	}

	if got := describeCalls.Load(); got != 1 {
		t.Errorf("describe called %d times, want 1", got)
	}
}

func TestPinecone_UpstreamError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"Namespace not found"}}`))
	}))
	defer server.Close()

	p, _ := NewPinecone(PineconeConfig{
		APIKey:    "k",
		IndexHost: server.URL,
		Retry:     RetryConfig{Attempts: 3},
	})
	_, err := p.Search(context.Background(), "missing", "x", 5)

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if ue.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", ue.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("404 should not be retried, got %d calls", calls.Load())
	}
}

func TestNewPinecone_Validation(t *testing.T) {
	if _, err := NewPinecone(PineconeConfig{IndexName: "x"}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewPinecone(PineconeConfig{APIKey: "k"}); err == nil {
		t.Error("expected error without index name or host")
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := map[string]string{
		"trade-abc123.svc.us-east1.pinecone.io":          "https://trade-abc123.svc.us-east1.pinecone.io",
		"https://trade-abc123.svc.us-east1.pinecone.io/": "https://trade-abc123.svc.us-east1.pinecone.io",
		"http://localhost:5081":                          "http://localhost:5081",
	}
	for in, want := range tests {
		if got := normalizeHost(in); got != want {
			t.Errorf("normalizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}
