package api

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationConfig holds configurable limits for query validation.
type ValidationConfig struct {
	MaxQueryLength int
	MaxTopK        int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQueryLength: 2000,
		MaxTopK:        100,
	}
}

// ValidateQuery trims the query in place and checks the request against the
// configured limits. It returns an *APIError describing the first failure,
// or nil if the request is valid. Namespace membership is checked against
// known, which normally comes from the routing table.
func ValidateQuery(req *QueryRequest, cfg ValidationConfig, known []Namespace) *APIError {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return NewInvalidRequestError("query", "query is required")
	}

	if cfg.MaxQueryLength > 0 && utf8.RuneCountInString(req.Query) > cfg.MaxQueryLength {
		return NewInvalidRequestError("query",
			fmt.Sprintf("query exceeds maximum length of %d characters", cfg.MaxQueryLength))
	}

	if req.TopK < 0 || (cfg.MaxTopK > 0 && req.TopK > cfg.MaxTopK) {
		return NewInvalidRequestError("top_k",
			fmt.Sprintf("top_k must be between 0 and %d", cfg.MaxTopK))
	}

	if req.Namespace != "" && req.Namespace != NamespaceAll {
		found := false
		for _, ns := range known {
			if ns == req.Namespace {
				found = true
				break
			}
		}
		if !found {
			return NewInvalidRequestError("namespace",
				fmt.Sprintf("unknown namespace %q", req.Namespace))
		}
	}

	return nil
}
