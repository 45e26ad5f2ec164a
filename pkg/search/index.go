// Package search retrieves nearest-neighbour records from a hosted vector
// index. All vector compute (embedding, indexing, ranking) happens in the
// external service; this package only shapes requests and decodes results.
//
// Two backends are provided: [Pinecone] for integrated-inference indexes
// that embed the query text server side, and [Qdrant] which embeds the
// query through an OpenAI-compatible embeddings endpoint first.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/rhuss/tradelens/pkg/api"
)

// Index is the pluggable interface for vector search backends.
type Index interface {
	// Search returns up to topK records from namespace nearest to text,
	// ordered by descending score.
	Search(ctx context.Context, namespace api.Namespace, text string, topK int) ([]api.Hit, error)

	// Backend returns a short backend name used in logs and metrics.
	Backend() string
}

// UpstreamError is returned when the search service answers with a
// non-success status code.
type UpstreamError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable reports whether err is worth retrying. Temporary upstream
// statuses and transport failures are, including a single attempt timing
// out. Cancellations and client errors are not. Whether the caller's own
// deadline has passed is decided by the caller, not from err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Temporary()
	}
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	return true
}

// decodeError marks malformed upstream responses. They are not retried.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }
