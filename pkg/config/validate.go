package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/tradelens/pkg/debug"
	"github.com/rhuss/tradelens/pkg/routing"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be > 0, got %d", c.Server.MaxBodyBytes)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	if !debug.ValidLevel(c.Log.Level) {
		add("log.level must be one of TRACE, DEBUG, INFO, WARN, ERROR, got %q", c.Log.Level)
	}

	if _, err := routing.New(c.Routing.Rules, c.Routing.Fallback); err != nil {
		add("routing: %w", err)
	}

	switch c.Search.Backend {
	case "pinecone":
		if c.Search.Pinecone.APIKey == "" {
			add("search.pinecone.api_key (or PINECONE_API_KEY) is required when search.backend is \"pinecone\"")
		}
		if c.Search.Pinecone.Index == "" && c.Search.Pinecone.Host == "" {
			add("search.pinecone.index (or PINECONE_INDEX) or search.pinecone.host is required when search.backend is \"pinecone\"")
		}
	case "qdrant":
		if c.Search.Qdrant.URL == "" {
			add("search.qdrant.url is required when search.backend is \"qdrant\"")
		}
		if c.Search.Qdrant.Embedding.URL == "" {
			add("search.qdrant.embedding.url is required when search.backend is \"qdrant\"")
		}
	default:
		add("search.backend must be \"pinecone\" or \"qdrant\", got %q", c.Search.Backend)
	}
	if c.Search.TopK <= 0 || c.Search.TopK > c.Engine.MaxTopK {
		add("search.top_k must be between 1 and engine.max_top_k (%d), got %d", c.Engine.MaxTopK, c.Search.TopK)
	}
	if c.Search.Retry.Attempts < 1 {
		add("search.retry.attempts must be >= 1, got %d", c.Search.Retry.Attempts)
	}

	switch c.Summarize.Provider {
	case "none", "":
		if c.Engine.Summarize {
			add("engine.summarize requires summarize.provider to be set")
		}
	case "openai":
		if c.Summarize.BaseURL == "" {
			add("summarize.base_url is required when summarize.provider is \"openai\"")
		}
		if c.Summarize.Model == "" {
			add("summarize.model is required when summarize.provider is \"openai\"")
		}
	case "gemini":
		if c.Summarize.APIKey == "" {
			add("summarize.api_key is required when summarize.provider is \"gemini\"")
		}
	default:
		add("summarize.provider must be \"none\", \"openai\" or \"gemini\", got %q", c.Summarize.Provider)
	}
	if t := c.Summarize.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("summarize.temperature must be between 0 and 2, got %v", *t)
	}

	if c.Engine.SummaryTimeout <= 0 {
		add("engine.summary_timeout must be > 0")
	}
	if c.Engine.MaxParallel <= 0 {
		add("engine.max_parallel must be > 0, got %d", c.Engine.MaxParallel)
	}

	switch c.History.Type {
	case "none", "memory":
	case "postgres":
		if c.History.Postgres.DSN == "" {
			add("history.postgres.dsn or history.postgres.dsn_file is required when history.type is \"postgres\"")
		}
	case "sqlite":
		if c.History.SQLite.Path == "" {
			add("history.sqlite.path is required when history.type is \"sqlite\"")
		}
	default:
		add("history.type must be \"none\", \"memory\", \"postgres\" or \"sqlite\", got %q", c.History.Type)
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			add("auth.api_keys must not be empty when auth.type is \"apikey\"")
		}
	case "jwt":
		if c.Auth.JWT.HMACSecret == "" && c.Auth.JWT.PublicKeyFile == "" {
			add("auth.jwt.hmac_secret or auth.jwt.public_key_file is required when auth.type is \"jwt\"")
		}
	default:
		add("auth.type must be \"none\", \"apikey\" or \"jwt\", got %q", c.Auth.Type)
	}

	if c.MCP.Enabled {
		if msg := checkMountPath(c.MCP.Path); msg != "" {
			add("mcp.path %s, got %q", msg, c.MCP.Path)
		}
	}
	if c.Observability.Metrics.Enabled {
		if msg := checkMountPath(c.Observability.Metrics.Path); msg != "" {
			add("observability.metrics.path %s, got %q", msg, c.Observability.Metrics.Path)
		}
	}
	if c.MCP.Enabled && c.Observability.Metrics.Enabled &&
		strings.TrimSuffix(c.MCP.Path, "/") == strings.TrimSuffix(c.Observability.Metrics.Path, "/") {
		add("mcp.path and observability.metrics.path must differ, both are %q", c.MCP.Path)
	}

	return errors.Join(errs...)
}

// reservedPaths are served by the built-in handlers.
var reservedPaths = []string{"/healthz", "/readyz", "/v1"}

// checkMountPath returns why p cannot host an optional endpoint, or ""
// when it can.
func checkMountPath(p string) string {
	switch {
	case !strings.HasPrefix(p, "/"):
		return "must start with \"/\""
	case strings.ContainsAny(p, "{} \t"):
		return "must not contain braces or whitespace"
	case strings.TrimSuffix(p, "/") == "":
		return "must not be the root path"
	}
	for _, r := range reservedPaths {
		if p == r || strings.HasPrefix(p, r+"/") {
			return fmt.Sprintf("must not overlap the built-in route %s", r)
		}
	}
	return ""
}
