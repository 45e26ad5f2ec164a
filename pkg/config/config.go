// Package config provides unified configuration for the tradelens service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (TRADELENS_ prefix, plus PINECONE_API_KEY,
//     PINECONE_INDEX and PORT)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/tradelens/pkg/auth"
	"github.com/rhuss/tradelens/pkg/auth/apikey"
	"github.com/rhuss/tradelens/pkg/routing"
	"github.com/rhuss/tradelens/pkg/search"
)

// Config holds all configuration for tradelens.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Routing       RoutingConfig       `yaml:"routing"`
	Search        SearchConfig        `yaml:"search"`
	Summarize     SummarizeConfig     `yaml:"summarize"`
	Engine        EngineConfig        `yaml:"engine"`
	History       HistoryConfig       `yaml:"history"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 90s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`   // default: 1 MiB
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Format string `yaml:"format"` // "text" or "json"; default: "text"

	// Debug lists debug categories to enable, e.g. "search,llm".
	Debug string `yaml:"debug"`
}

// RoutingConfig holds the keyword routing table.
type RoutingConfig struct {
	Rules    []routing.Rule `yaml:"rules"`
	Fallback routing.Target `yaml:"fallback"`
}

// SearchConfig selects and configures the vector index.
type SearchConfig struct {
	Backend  string             `yaml:"backend"` // "pinecone" or "qdrant"; default: "pinecone"
	TopK     int                `yaml:"top_k"`   // default: 5
	Timeout  time.Duration      `yaml:"timeout"` // default: 10s
	Retry    search.RetryConfig `yaml:"retry"`
	Pinecone PineconeConfig     `yaml:"pinecone"`
	Qdrant   QdrantConfig       `yaml:"qdrant"`
}

// PineconeConfig holds Pinecone connection settings.
type PineconeConfig struct {
	APIKey        string   `yaml:"api_key"`
	APIKeyFile    string   `yaml:"api_key_file"`
	Index         string   `yaml:"index"`
	Host          string   `yaml:"host"` // optional; resolved through the control plane when empty
	ControllerURL string   `yaml:"controller_url"`
	APIVersion    string   `yaml:"api_version"`
	Fields        []string `yaml:"fields"`
}

// QdrantConfig holds Qdrant and query embedding settings.
type QdrantConfig struct {
	URL              string          `yaml:"url"`
	APIKey           string          `yaml:"api_key"`
	APIKeyFile       string          `yaml:"api_key_file"`
	CollectionPrefix string          `yaml:"collection_prefix"`
	Embedding        EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig configures the OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	URL        string `yaml:"url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`
}

// SummarizeConfig selects and configures the summary model.
type SummarizeConfig struct {
	Provider    string        `yaml:"provider"` // "none", "openai" or "gemini"; default: "none"
	BaseURL     string        `yaml:"base_url"` // openai only
	APIKey      string        `yaml:"api_key"`
	APIKeyFile  string        `yaml:"api_key_file"`
	Model       string        `yaml:"model"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"` // HTTP timeout; default: 60s
}

// EngineConfig holds query pipeline settings.
type EngineConfig struct {
	Summarize      bool          `yaml:"summarize"`       // summarise when the request does not say; default: false
	SummaryTimeout time.Duration `yaml:"summary_timeout"` // default: 30s
	MaxParallel    int           `yaml:"max_parallel"`    // default: 4
	MaxQueryLength int           `yaml:"max_query_length"`
	MaxTopK        int           `yaml:"max_top_k"`
}

// HistoryConfig selects the query history store.
type HistoryConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory", "postgres", "sqlite"; default: "memory"
	MaxSize  int            `yaml:"max_size"` // memory only; default: 1000
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "tradelens.db"
}

// AuthConfig holds authentication settings for /v1 and /mcp.
type AuthConfig struct {
	Type      string          `yaml:"type"` // "none", "apikey", "jwt"; default: "none"
	APIKeys   []apikey.Key    `yaml:"api_keys"`
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Issuer         string `yaml:"issuer"`
	Audience       string `yaml:"audience"`
	HMACSecret     string `yaml:"hmac_secret"`
	HMACSecretFile string `yaml:"hmac_secret_file"`
	PublicKeyFile  string `yaml:"public_key_file"`
	TenantClaim    string `yaml:"tenant_claim"`
	TierClaim      string `yaml:"tier_claim"`
}

// RateLimitConfig holds per-tier rate limits.
type RateLimitConfig struct {
	Default auth.TierConfig            `yaml:"default"`
	Tiers   map[string]auth.TierConfig `yaml:"tiers"`
}

// MCPConfig controls the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Routing: RoutingConfig{
			Rules:    routing.DefaultRules(),
			Fallback: routing.DefaultFallback(),
		},
		Search: SearchConfig{
			Backend: "pinecone",
			TopK:    5,
			Timeout: 10 * time.Second,
			Retry:   search.DefaultRetryConfig(),
		},
		Summarize: SummarizeConfig{
			Provider: "none",
			Timeout:  60 * time.Second,
		},
		Engine: EngineConfig{
			SummaryTimeout: 30 * time.Second,
			MaxParallel:    4,
			MaxQueryLength: 2000,
			MaxTopK:        100,
		},
		History: HistoryConfig{
			Type:    "memory",
			MaxSize: 1000,
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
			SQLite: SQLiteConfig{
				Path: "tradelens.db",
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
