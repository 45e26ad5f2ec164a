// Package gemini summarizes records with Google Gemini.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/summarize"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// DefaultTemperature keeps answers close to the records.
const DefaultTemperature = float32(0.3)

// Ensure Summarizer implements summarize.Summarizer at compile time.
var _ summarize.Summarizer = (*Summarizer)(nil)

// Summarizer implements summarize.Summarizer using Gemini.
type Summarizer struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewClient creates a Gemini API client for apiKey.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return client, nil
}

// New creates a Summarizer. An empty model selects DefaultModel and a nil
// temperature selects DefaultTemperature.
func New(client *genai.Client, model string, temperature *float64) *Summarizer {
	if model == "" {
		model = DefaultModel
	}
	temp := DefaultTemperature
	if temperature != nil {
		temp = float32(*temperature)
	}
	return &Summarizer{client: client, model: model, temperature: temp}
}

// Provider returns "gemini".
func (s *Summarizer) Provider() string { return "gemini" }

// Summarize answers in.Query from in.Hits.
func (s *Summarizer) Summarize(ctx context.Context, in summarize.Input) (string, error) {
	if len(in.Hits) == 0 {
		return "", nil
	}
	if s.client == nil {
		return "", api.NewServerError("gemini client not configured")
	}

	result, err := s.client.Models.GenerateContent(ctx, s.model,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: summarize.BuildPrompt(in)}},
		}},
		BuildConfig(in.RecordType, s.temperature),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", api.NewUpstreamError(fmt.Sprintf("gemini: %s", err.Error()))
	}
	if result == nil {
		return "", api.NewUpstreamError("gemini returned nil result")
	}

	return strings.TrimSpace(result.Text()), nil
}

// BuildConfig returns the GenerateContentConfig for a record type.
func BuildConfig(rt api.RecordType, temperature float32) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: summarize.SystemInstruction(rt)}},
		},
		Temperature: &temperature,
	}
}
