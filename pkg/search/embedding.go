package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Embedder embeds text via an external service.
type Embedder interface {
	// Embed converts a batch of text strings into embedding vectors.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of the embedding vectors.
	// Returns 0 until the first successful Embed call.
	Dimensions() int
}

// EmbeddingConfig configures an OpenAI-compatible embeddings client.
type EmbeddingConfig struct {
	URL        string
	Model      string
	APIKey     string
	Timeout    time.Duration
	Retry      RetryConfig
	HTTPClient *http.Client
}

// OpenAIEmbedder calls any OpenAI-compatible /v1/embeddings endpoint.
type OpenAIEmbedder struct {
	endpoint string
	model    string
	apiKey   string
	client   *jsonClient

	mu   sync.RWMutex
	dims int
}

// Compile-time check that OpenAIEmbedder implements Embedder.
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embeddings client. The /v1/embeddings path is
// appended to cfg.URL unless already present.
func NewOpenAIEmbedder(cfg EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("embedding: url is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	endpoint := cfg.URL
	if !strings.HasSuffix(endpoint, "/v1/embeddings") {
		endpoint = strings.TrimRight(endpoint, "/") + "/v1/embeddings"
	}

	return &OpenAIEmbedder{
		endpoint: endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   newJSONClient("embeddings", cfg.HTTPClient, cfg.Timeout, cfg.Retry),
	}, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// Embed sends texts to the embeddings endpoint and returns the vectors in
// input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	header := http.Header{}
	if e.apiKey != "" {
		header.Set("Authorization", "Bearer "+e.apiKey)
	}

	var resp embeddingResponse
	if err := e.client.do(ctx, http.MethodPost, e.endpoint, header, embeddingRequest{Input: texts, Model: e.model}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range [0, %d)", d.Index, len(texts))
		}
		vectors[d.Index] = d.Embedding
	}

	if len(vectors[0]) > 0 {
		e.mu.Lock()
		if e.dims == 0 {
			e.dims = len(vectors[0])
		}
		e.mu.Unlock()
	}

	return vectors, nil
}

// Dimensions returns the dimensionality of the embedding vectors.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}
