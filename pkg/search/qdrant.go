package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/tradelens/pkg/api"
)

// QdrantConfig holds configuration for the Qdrant backend.
type QdrantConfig struct {
	URL string

	// APIKey is sent as the api-key header (Qdrant Cloud). Optional.
	APIKey string

	// CollectionPrefix is prepended to the namespace to form the collection name.
	CollectionPrefix string

	Timeout    time.Duration
	Retry      RetryConfig
	HTTPClient *http.Client
}

// Qdrant implements Index using the Qdrant HTTP API. Each namespace maps to
// one collection. Query text is embedded before the search.
type Qdrant struct {
	baseURL  string
	apiKey   string
	prefix   string
	embedder Embedder
	client   *jsonClient
}

// Compile-time check that Qdrant implements Index.
var _ Index = (*Qdrant)(nil)

// NewQdrant creates a Qdrant backend that embeds queries with embedder.
func NewQdrant(cfg QdrantConfig, embedder Embedder) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant: url is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("qdrant: embedder is required")
	}
	return &Qdrant{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
		prefix:   cfg.CollectionPrefix,
		embedder: embedder,
		client:   newJSONClient("qdrant", cfg.HTTPClient, cfg.Timeout, cfg.Retry),
	}, nil
}

// Backend returns "qdrant".
func (q *Qdrant) Backend() string { return "qdrant" }

// qdrantSearchRequest is the JSON body for Qdrant's search endpoint.
type qdrantSearchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

// qdrantSearchResponse represents Qdrant's search response.
type qdrantSearchResponse struct {
	Result []qdrantSearchResult `json:"result"`
}

type qdrantSearchResult struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// Search embeds text and performs a nearest-neighbour search in the
// namespace's collection.
// POST /collections/{name}/points/search
func (q *Qdrant) Search(ctx context.Context, namespace api.Namespace, text string, topK int) ([]api.Hit, error) {
	vectors, err := q.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding returned no vectors")
	}

	header := http.Header{}
	if q.apiKey != "" {
		header.Set("api-key", q.apiKey)
	}

	collection := q.prefix + string(namespace)
	endpoint := fmt.Sprintf("%s/collections/%s/points/search", q.baseURL, url.PathEscape(collection))

	var resp qdrantSearchResponse
	req := qdrantSearchRequest{Vector: vectors[0], Limit: topK, WithPayload: true}
	if err := q.client.do(ctx, http.MethodPost, endpoint, header, req, &resp); err != nil {
		return nil, err
	}

	hits := make([]api.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, api.Hit{
			ID:        pointID(r.ID),
			Score:     r.Score,
			Namespace: namespace,
			Fields:    r.Payload,
		})
	}
	return hits, nil
}

// pointID renders a Qdrant point id. UUIDs arrive as JSON strings and
// integer ids as bare numbers; numbers keep their exact digits.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
