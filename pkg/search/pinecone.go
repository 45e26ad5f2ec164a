package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/debug"
)

const (
	defaultPineconeController = "https://api.pinecone.io"
	defaultPineconeAPIVersion = "2025-01"
)

// PineconeConfig holds configuration for the Pinecone backend.
type PineconeConfig struct {
	// APIKey authenticates against both the control and data plane.
	APIKey string

	// IndexName is used to look up the data plane host when IndexHost is empty.
	IndexName string

	// IndexHost is the data plane host of the index, with or without scheme.
	IndexHost string

	// ControllerURL is the control plane base URL. Defaults to https://api.pinecone.io.
	ControllerURL string

	// APIVersion is sent as X-Pinecone-API-Version. Defaults to 2025-01.
	APIVersion string

	// Fields restricts the record fields returned with each hit. Empty returns all.
	Fields []string

	Timeout    time.Duration
	Retry      RetryConfig
	HTTPClient *http.Client
}

// Pinecone implements Index against a Pinecone index with integrated
// embedding. The query text is sent as-is and embedded server side.
type Pinecone struct {
	cfg    PineconeConfig
	client *jsonClient

	mu   sync.Mutex
	host string
}

// Compile-time check that Pinecone implements Index.
var _ Index = (*Pinecone)(nil)

// NewPinecone creates a Pinecone backend.
func NewPinecone(cfg PineconeConfig) (*Pinecone, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: api key is required")
	}
	if cfg.IndexHost == "" && cfg.IndexName == "" {
		return nil, fmt.Errorf("pinecone: index name or index host is required")
	}
	if cfg.ControllerURL == "" {
		cfg.ControllerURL = defaultPineconeController
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultPineconeAPIVersion
	}

	p := &Pinecone{
		cfg:    cfg,
		client: newJSONClient("pinecone", cfg.HTTPClient, cfg.Timeout, cfg.Retry),
	}
	if cfg.IndexHost != "" {
		p.host = normalizeHost(cfg.IndexHost)
	}
	return p, nil
}

// Backend returns "pinecone".
func (p *Pinecone) Backend() string { return "pinecone" }

// pineconeSearchRequest is the body of POST /records/namespaces/{ns}/search.
type pineconeSearchRequest struct {
	Query  pineconeQuery `json:"query"`
	Fields []string      `json:"fields,omitempty"`
}

type pineconeQuery struct {
	Inputs map[string]string `json:"inputs"`
	TopK   int               `json:"top_k"`
}

// pineconeSearchResponse is the data plane search response. Result is a
// pointer so an absent object decodes to nil.
type pineconeSearchResponse struct {
	Result *struct {
		Hits []pineconeHit `json:"hits"`
	} `json:"result"`
	Usage map[string]any `json:"usage"`
}

type pineconeHit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Fields map[string]any `json:"fields"`
}

// Search queries one namespace of the index.
func (p *Pinecone) Search(ctx context.Context, namespace api.Namespace, text string, topK int) ([]api.Hit, error) {
	host, err := p.resolveHost(ctx)
	if err != nil {
		return nil, err
	}

	req := pineconeSearchRequest{
		Query: pineconeQuery{
			Inputs: map[string]string{"text": text},
			TopK:   topK,
		},
		Fields: p.cfg.Fields,
	}

	endpoint := fmt.Sprintf("%s/records/namespaces/%s/search", host, url.PathEscape(string(namespace)))

	var resp pineconeSearchResponse
	if err := p.client.do(ctx, http.MethodPost, endpoint, p.headers(), req, &resp); err != nil {
		return nil, err
	}

	if resp.Result == nil {
		return nil, nil
	}

	debug.Log("search", "pinecone search", "namespace", namespace, "hits", len(resp.Result.Hits), "usage", resp.Usage)

	hits := make([]api.Hit, 0, len(resp.Result.Hits))
	for _, h := range resp.Result.Hits {
		hits = append(hits, api.Hit{
			ID:        h.ID,
			Score:     h.Score,
			Namespace: namespace,
			Fields:    h.Fields,
		})
	}
	return hits, nil
}

type pineconeDescribeResponse struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

// resolveHost returns the data plane host, describing the index through the
// control plane on first use. A failed lookup is retried on the next call.
func (p *Pinecone) resolveHost(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.host != "" {
		return p.host, nil
	}

	endpoint := fmt.Sprintf("%s/indexes/%s", strings.TrimRight(p.cfg.ControllerURL, "/"), url.PathEscape(p.cfg.IndexName))

	var desc pineconeDescribeResponse
	if err := p.client.do(ctx, http.MethodGet, endpoint, p.headers(), nil, &desc); err != nil {
		return "", fmt.Errorf("describing pinecone index %q: %w", p.cfg.IndexName, err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("pinecone index %q has no host", p.cfg.IndexName)
	}

	p.host = normalizeHost(desc.Host)
	debug.Log("search", "resolved pinecone host", "index", p.cfg.IndexName, "host", p.host)
	return p.host, nil
}

func (p *Pinecone) headers() http.Header {
	h := http.Header{}
	h.Set("Api-Key", p.cfg.APIKey)
	h.Set("X-Pinecone-API-Version", p.cfg.APIVersion)
	return h
}

// normalizeHost adds an https scheme when missing and strips trailing slashes.
func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
