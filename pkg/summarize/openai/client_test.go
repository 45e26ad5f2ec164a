package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/summarize"
)

var sampleInput = summarize.Input{
	Query:      "steel pipe exporters",
	RecordType: api.RecordTypeExporter,
	Hits:       []api.Hit{{ID: "exp-1", Score: 0.9, Fields: map[string]any{"company": "Anatolia Steel"}}},
}

func TestSummarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}

		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}
		if !strings.Contains(req.Messages[1].Content, "<id>exp-1</id>") {
			t.Errorf("user prompt lacks record: %s", req.Messages[1].Content)
		}
		if req.MaxTokens == nil || *req.MaxTokens != 256 {
			t.Errorf("max_tokens = %v", req.MaxTokens)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature = %v", req.Temperature)
		}

		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Model:   req.Model,
			Choices: []ChatChoice{{Message: ChatMessage{Role: "assistant", Content: "  Anatolia Steel [exp-1].\n"}}},
			Usage:   &ChatUsage{PromptTokens: 10, CompletionTokens: 5},
		})
	}))
	defer server.Close()

	temp := 0.2
	s, err := New(Config{BaseURL: server.URL + "/v1/", APIKey: "sk-test", Model: "gpt-4o-mini", Temperature: &temp, MaxTokens: 256})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	got, err := s.Summarize(context.Background(), sampleInput)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if got != "Anatolia Steel [exp-1]." {
		t.Errorf("Summarize() = %q", got)
	}
}

func TestSummarize_NoHitsSkipsCall(t *testing.T) {
	s, _ := New(Config{BaseURL: "http://127.0.0.1:1", Model: "m"})
	got, err := s.Summarize(context.Background(), summarize.Input{Query: "q"})
	if err != nil || got != "" {
		t.Errorf("Summarize() = %q, %v", got, err)
	}
}

func TestSummarize_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType api.ErrorType
		wantMsg  string
	}{
		{"rate limit", 429, `{"error":{"message":"slow down"}}`, api.ErrorTypeTooManyRequests, "slow down"},
		{"server error", 503, ``, api.ErrorTypeUpstream, "HTTP 503"},
		{"auth", 401, `bad key`, api.ErrorTypeServerError, "bad key"},
		{"not found", 404, ``, api.ErrorTypeServerError, "model not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s, _ := New(Config{BaseURL: server.URL, Model: "m"})
			_, err := s.Summarize(context.Background(), sampleInput)

			var apiErr *api.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Type != tt.wantType {
				t.Errorf("type = %q, want %q", apiErr.Type, tt.wantType)
			}
			if !strings.Contains(apiErr.Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestSummarize_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	s, _ := New(Config{BaseURL: server.URL, Model: "m"})
	if _, err := s.Summarize(context.Background(), sampleInput); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Error("expected error without base url")
	}
	if _, err := New(Config{BaseURL: "http://x"}); err == nil {
		t.Error("expected error without model")
	}
}
