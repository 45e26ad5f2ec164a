package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/tradelens/pkg/auth/apikey"
	"github.com/rhuss/tradelens/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, TRADELENS_CONFIG env, ./config.yaml, /etc/tradelens/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. TRADELENS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/tradelens/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("TRADELENS_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/tradelens/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile parses a YAML file into cfg. Unknown keys are rejected so
// typos surface at startup. Fields not present keep their defaults.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides maps environment variables to config fields. The
// unprefixed PORT, PINECONE_API_KEY and PINECONE_INDEX variables are
// honoured for compatibility with existing deployments; the TRADELENS_
// variants take precedence.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Search.Pinecone.APIKey, "PINECONE_API_KEY")
	setString(&cfg.Search.Pinecone.Index, "PINECONE_INDEX")

	setInt(&cfg.Server.Port, "TRADELENS_PORT")
	setString(&cfg.Log.Level, "TRADELENS_LOG_LEVEL")
	setString(&cfg.Log.Format, "TRADELENS_LOG_FORMAT")
	setString(&cfg.Log.Debug, "TRADELENS_DEBUG")

	setString(&cfg.Search.Backend, "TRADELENS_SEARCH_BACKEND")
	setInt(&cfg.Search.TopK, "TRADELENS_TOP_K")
	setString(&cfg.Search.Pinecone.APIKey, "TRADELENS_PINECONE_API_KEY")
	setString(&cfg.Search.Pinecone.Index, "TRADELENS_PINECONE_INDEX")
	setString(&cfg.Search.Pinecone.Host, "TRADELENS_PINECONE_HOST")
	setString(&cfg.Search.Qdrant.URL, "TRADELENS_QDRANT_URL")
	setString(&cfg.Search.Qdrant.Embedding.URL, "TRADELENS_EMBEDDING_URL")

	setString(&cfg.Summarize.Provider, "TRADELENS_SUMMARIZE_PROVIDER")
	setString(&cfg.Summarize.BaseURL, "TRADELENS_SUMMARIZE_BASE_URL")
	setString(&cfg.Summarize.APIKey, "TRADELENS_SUMMARIZE_API_KEY")
	setString(&cfg.Summarize.Model, "TRADELENS_SUMMARIZE_MODEL")
	if v := os.Getenv("TRADELENS_SUMMARIZE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Engine.Summarize = b
		}
	}
	if v := os.Getenv("TRADELENS_SUMMARY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.SummaryTimeout = d
		}
	}

	setString(&cfg.History.Type, "TRADELENS_HISTORY")
	setString(&cfg.History.Postgres.DSN, "TRADELENS_POSTGRES_DSN")
	setString(&cfg.History.SQLite.Path, "TRADELENS_SQLITE_PATH")

	setString(&cfg.Auth.Type, "TRADELENS_AUTH_TYPE")
	setString(&cfg.Auth.JWT.HMACSecret, "TRADELENS_JWT_SECRET")

	// TRADELENS_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("TRADELENS_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]apikey.Key, error) {
	var raw []struct {
		Key     string `json:"key"`
		Subject string `json:"subject"`
		Tier    string `json:"tier"`
		Tenant  string `json:"tenant"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	keys := make([]apikey.Key, len(raw))
	for i, r := range raw {
		keys[i] = apikey.Key{Key: r.Key, Subject: r.Subject, Tier: r.Tier, Tenant: r.Tenant}
	}
	return keys, nil
}

// resolveFileReferences reads _file fields into their value fields when
// the value is empty. File content is trimmed of surrounding whitespace.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"search.pinecone.api_key_file", cfg.Search.Pinecone.APIKeyFile, &cfg.Search.Pinecone.APIKey},
		{"search.qdrant.api_key_file", cfg.Search.Qdrant.APIKeyFile, &cfg.Search.Qdrant.APIKey},
		{"search.qdrant.embedding.api_key_file", cfg.Search.Qdrant.Embedding.APIKeyFile, &cfg.Search.Qdrant.Embedding.APIKey},
		{"summarize.api_key_file", cfg.Summarize.APIKeyFile, &cfg.Summarize.APIKey},
		{"history.postgres.dsn_file", cfg.History.Postgres.DSNFile, &cfg.History.Postgres.DSN},
		{"auth.jwt.hmac_secret_file", cfg.Auth.JWT.HMACSecretFile, &cfg.Auth.JWT.HMACSecret},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
