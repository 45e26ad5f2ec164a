package engine

import (
	"time"

	"github.com/rhuss/tradelens/pkg/api"
)

// Config holds configuration for the query pipeline.
type Config struct {
	// TopK is used when a request does not set top_k. Zero or negative
	// means use the default of 5.
	TopK int

	// Summarize is the default for requests that do not set summarize.
	Summarize bool

	// SummaryTimeout bounds a single summarizer call. Zero means 30s.
	SummaryTimeout time.Duration

	// MaxParallel bounds concurrent namespace searches for the "all"
	// namespace. Zero or negative means 4.
	MaxParallel int

	// Validation limits applied to incoming queries.
	Validation api.ValidationConfig
}

func (c Config) topK() int {
	if c.TopK <= 0 {
		return 5
	}
	return c.TopK
}

func (c Config) summaryTimeout() time.Duration {
	if c.SummaryTimeout <= 0 {
		return 30 * time.Second
	}
	return c.SummaryTimeout
}

func (c Config) maxParallel() int {
	if c.MaxParallel <= 0 {
		return 4
	}
	return c.MaxParallel
}
