package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/debug"
	"github.com/rhuss/tradelens/pkg/observability"
)

// Instrumented wraps an Index with metrics and logging.
type Instrumented struct {
	next Index
}

// Compile-time check that Instrumented implements Index.
var _ Index = (*Instrumented)(nil)

// Instrument wraps idx so every search is measured.
func Instrument(idx Index) *Instrumented {
	return &Instrumented{next: idx}
}

// Backend returns the wrapped backend's name.
func (i *Instrumented) Backend() string { return i.next.Backend() }

// Search delegates to the wrapped index and records latency and hit counts.
func (i *Instrumented) Search(ctx context.Context, namespace api.Namespace, text string, topK int) ([]api.Hit, error) {
	start := time.Now()
	hits, err := i.next.Search(ctx, namespace, text, topK)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		slog.WarnContext(ctx, "vector search failed",
			"backend", i.next.Backend(),
			"namespace", namespace,
			"duration", elapsed,
			"error", err,
		)
	} else {
		observability.SearchHits.WithLabelValues(string(namespace)).Observe(float64(len(hits)))
		debug.Log("search", "vector search completed",
			"backend", i.next.Backend(),
			"namespace", namespace,
			"top_k", topK,
			"hits", len(hits),
			"duration", elapsed,
		)
	}

	observability.SearchDuration.WithLabelValues(i.next.Backend(), string(namespace), status).Observe(elapsed.Seconds())
	return hits, err
}
