// Package openai summarizes records through any OpenAI-compatible Chat
// Completions backend (OpenAI, vLLM, LiteLLM, Ollama).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/debug"
	"github.com/rhuss/tradelens/pkg/summarize"
)

// Config holds connection and sampling settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration

	// HTTPClient overrides the default client. Used by tests.
	HTTPClient *http.Client
}

// Summarizer calls /v1/chat/completions once per query.
type Summarizer struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature *float64
	maxTokens   int
}

var _ summarize.Summarizer = (*Summarizer)(nil)

// New creates a Summarizer for an OpenAI-compatible backend.
func New(cfg Config) (*Summarizer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai summarizer: base_url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai summarizer: model is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	// The path is appended per request; accept base URLs given with or
	// without the /v1 suffix.
	base := strings.TrimRight(cfg.BaseURL, "/")
	base = strings.TrimSuffix(base, "/v1")

	return &Summarizer{
		httpClient:  hc,
		baseURL:     base,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Provider returns "openai".
func (s *Summarizer) Provider() string { return "openai" }

// Summarize asks the model to answer in.Query from in.Hits.
func (s *Summarizer) Summarize(ctx context.Context, in summarize.Input) (string, error) {
	if len(in.Hits) == 0 {
		return "", nil
	}

	chatReq := s.buildRequest(in)
	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := s.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	if debug.TraceIsEnabled("llm") {
		debug.Trace("llm", "chat request", "url", url, "body", debug.Truncate(string(body), 2000))
	}

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", MapHTTPError(httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return "", api.NewUpstreamError(fmt.Sprintf("failed to parse model response: %s", err.Error()))
	}
	if len(chatResp.Choices) == 0 {
		return "", api.NewUpstreamError("model response contained no choices")
	}

	if chatResp.Usage != nil {
		debug.Log("llm", "chat usage",
			"model", chatResp.Model,
			"prompt_tokens", chatResp.Usage.PromptTokens,
			"completion_tokens", chatResp.Usage.CompletionTokens,
		)
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

func (s *Summarizer) buildRequest(in summarize.Input) *ChatCompletionRequest {
	req := &ChatCompletionRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: "system", Content: summarize.SystemInstruction(in.RecordType)},
			{Role: "user", Content: summarize.BuildPrompt(in)},
		},
		Temperature: s.temperature,
		N:           1,
	}
	if s.maxTokens > 0 {
		mt := s.maxTokens
		req.MaxTokens = &mt
	}
	return req
}
