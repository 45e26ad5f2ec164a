package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/auth"
	"github.com/rhuss/tradelens/pkg/auth/apikey"
	"github.com/rhuss/tradelens/pkg/auth/jwt"
	"github.com/rhuss/tradelens/pkg/config"
	"github.com/rhuss/tradelens/pkg/engine"
	"github.com/rhuss/tradelens/pkg/history"
	"github.com/rhuss/tradelens/pkg/history/memory"
	"github.com/rhuss/tradelens/pkg/history/postgres"
	"github.com/rhuss/tradelens/pkg/history/sqlite"
	"github.com/rhuss/tradelens/pkg/routing"
	"github.com/rhuss/tradelens/pkg/search"
	"github.com/rhuss/tradelens/pkg/summarize"
	"github.com/rhuss/tradelens/pkg/summarize/gemini"
	"github.com/rhuss/tradelens/pkg/summarize/openai"
	"github.com/rhuss/tradelens/pkg/transport"
)

// stack is the assembled query pipeline plus the resources it owns.
type stack struct {
	engine *engine.Engine
	store  history.Store
}

// Close releases the history store.
func (s *stack) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// buildStack wires the engine from cfg.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	router, err := routing.New(cfg.Routing.Rules, cfg.Routing.Fallback)
	if err != nil {
		return nil, err
	}

	idx, err := buildIndex(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("building search index: %w", err)
	}

	summarizer, err := buildSummarizer(ctx, cfg.Summarize)
	if err != nil {
		return nil, fmt.Errorf("building summarizer: %w", err)
	}

	store, err := buildStore(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("building history store: %w", err)
	}

	eng, err := engine.New(router, idx, summarizer, store, engine.Config{
		TopK:           cfg.Search.TopK,
		Summarize:      cfg.Engine.Summarize,
		SummaryTimeout: cfg.Engine.SummaryTimeout,
		MaxParallel:    cfg.Engine.MaxParallel,
		Validation: api.ValidationConfig{
			MaxQueryLength: cfg.Engine.MaxQueryLength,
			MaxTopK:        cfg.Engine.MaxTopK,
		},
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	slog.Info("pipeline ready",
		"backend", idx.Backend(),
		"summarizer", cfg.Summarize.Provider,
		"history", cfg.History.Type,
		"namespaces", router.Namespaces(),
	)
	return &stack{engine: eng, store: store}, nil
}

// buildIndex creates the configured vector index, wrapped with metrics.
func buildIndex(cfg config.SearchConfig) (search.Index, error) {
	switch cfg.Backend {
	case "pinecone":
		p, err := search.NewPinecone(search.PineconeConfig{
			APIKey:        cfg.Pinecone.APIKey,
			IndexName:     cfg.Pinecone.Index,
			IndexHost:     cfg.Pinecone.Host,
			ControllerURL: cfg.Pinecone.ControllerURL,
			APIVersion:    cfg.Pinecone.APIVersion,
			Fields:        cfg.Pinecone.Fields,
			Timeout:       cfg.Timeout,
			Retry:         cfg.Retry,
		})
		if err != nil {
			return nil, err
		}
		return search.Instrument(p), nil

	case "qdrant":
		embedder, err := search.NewOpenAIEmbedder(search.EmbeddingConfig{
			URL:     cfg.Qdrant.Embedding.URL,
			Model:   cfg.Qdrant.Embedding.Model,
			APIKey:  cfg.Qdrant.Embedding.APIKey,
			Timeout: cfg.Timeout,
			Retry:   cfg.Retry,
		})
		if err != nil {
			return nil, err
		}
		q, err := search.NewQdrant(search.QdrantConfig{
			URL:              cfg.Qdrant.URL,
			APIKey:           cfg.Qdrant.APIKey,
			CollectionPrefix: cfg.Qdrant.CollectionPrefix,
			Timeout:          cfg.Timeout,
			Retry:            cfg.Retry,
		}, embedder)
		if err != nil {
			return nil, err
		}
		return search.Instrument(q), nil
	}
	return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
}

// buildSummarizer returns nil when summaries are disabled.
func buildSummarizer(ctx context.Context, cfg config.SummarizeConfig) (summarize.Summarizer, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil

	case "openai":
		s, err := openai.New(openai.Config{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return summarize.Instrument(s), nil

	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return summarize.Instrument(gemini.New(client, cfg.Model, cfg.Temperature)), nil
	}
	return nil, fmt.Errorf("unknown summarize provider %q", cfg.Provider)
}

// buildStore returns a nil interface when history is disabled, never a
// typed nil.
func buildStore(ctx context.Context, cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "memory":
		return memory.New(cfg.MaxSize), nil

	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case "sqlite":
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown history type %q", cfg.Type)
}

// buildAuth returns the middleware guarding /v1 and /mcp, or nil when
// auth.type is none.
func buildAuth(cfg config.AuthConfig) (transport.Middleware, error) {
	var authn auth.Authenticator
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "apikey":
		authn = apikey.New(cfg.APIKeys)

	case "jwt":
		jcfg := jwt.Config{
			Issuer:      cfg.JWT.Issuer,
			Audience:    cfg.JWT.Audience,
			HMACSecret:  cfg.JWT.HMACSecret,
			TenantClaim: cfg.JWT.TenantClaim,
			TierClaim:   cfg.JWT.TierClaim,
		}
		if cfg.JWT.PublicKeyFile != "" {
			pem, err := os.ReadFile(cfg.JWT.PublicKeyFile)
			if err != nil {
				return nil, fmt.Errorf("reading auth.jwt.public_key_file: %w", err)
			}
			jcfg.PublicKeyPEM = string(pem)
			jcfg.HMACSecret = ""
		}
		a, err := jwt.New(jcfg)
		if err != nil {
			return nil, err
		}
		authn = a

	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	var limiter auth.RateLimiter
	if cfg.RateLimit.Default.RequestsPerMinute > 0 || len(cfg.RateLimit.Tiers) > 0 {
		limiter = auth.NewTokenBucketLimiter(cfg.RateLimit.Tiers, cfg.RateLimit.Default)
	}

	chain := &auth.Chain{Authenticators: []auth.Authenticator{authn}, Default: auth.No}
	return auth.Middleware(chain, limiter), nil
}

// errHistoryNotPostgres is returned by migrate for other history types.
var errHistoryNotPostgres = errors.New(`migrate requires history.type "postgres"`)
