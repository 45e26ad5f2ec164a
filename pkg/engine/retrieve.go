package engine

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/tradelens/pkg/api"
)

// retrieve searches one namespace, or every routable namespace when
// namespace is api.NamespaceAll. Every returned hit carries its namespace.
func (e *Engine) retrieve(ctx context.Context, namespace api.Namespace, text string, topK int) ([]api.Hit, error) {
	if namespace != api.NamespaceAll {
		hits, err := e.index.Search(ctx, namespace, text, topK)
		if err != nil {
			return nil, err
		}
		return tag(hits, namespace), nil
	}
	return e.fanOut(ctx, e.router.Namespaces(), text, topK)
}

// fanOut searches namespaces concurrently and merges the results by score.
// A failing namespace is skipped; the first error is returned only when
// every namespace fails.
func (e *Engine) fanOut(ctx context.Context, namespaces []api.Namespace, text string, topK int) ([]api.Hit, error) {
	results := make([][]api.Hit, len(namespaces))
	errs := make([]error, len(namespaces))

	// Partition errors are kept per slot rather than returned so one
	// broken namespace does not cancel the others.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.maxParallel())

	for i, ns := range namespaces {
		eg.Go(func() error {
			hits, err := e.index.Search(egCtx, ns, text, topK)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = tag(hits, ns)
			return nil
		})
	}
	_ = eg.Wait()

	var (
		merged   []api.Hit
		firstErr error
		failed   int
	)
	for i, err := range errs {
		if err != nil {
			slog.WarnContext(ctx, "namespace search failed, skipping", "namespace", namespaces[i], "error", err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		merged = append(merged, results[i]...)
	}

	if len(namespaces) > 0 && failed == len(namespaces) {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stable sort keeps namespace order for equal scores.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

func tag(hits []api.Hit, ns api.Namespace) []api.Hit {
	for i := range hits {
		if hits[i].Namespace == "" {
			hits[i].Namespace = ns
		}
	}
	return hits
}
