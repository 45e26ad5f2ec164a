package summarize

import (
	"context"
	"time"

	"github.com/rhuss/tradelens/pkg/debug"
	"github.com/rhuss/tradelens/pkg/observability"
)

// Instrumented wraps a Summarizer with request and latency metrics.
type Instrumented struct {
	next Summarizer
}

var _ Summarizer = (*Instrumented)(nil)

// Instrument wraps s so every model call is measured.
func Instrument(s Summarizer) *Instrumented {
	return &Instrumented{next: s}
}

// Provider returns the wrapped provider's name.
func (i *Instrumented) Provider() string { return i.next.Provider() }

// Summarize delegates to the wrapped summarizer. Inputs without hits are
// not counted since no model call happens.
func (i *Instrumented) Summarize(ctx context.Context, in Input) (string, error) {
	if len(in.Hits) == 0 {
		return "", nil
	}

	start := time.Now()
	out, err := i.next.Summarize(ctx, in)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.LLMRequestsTotal.WithLabelValues(i.next.Provider(), status).Inc()
	observability.LLMLatency.WithLabelValues(i.next.Provider()).Observe(elapsed.Seconds())

	debug.Log("llm", "summary completed",
		"provider", i.next.Provider(),
		"record_type", in.RecordType,
		"hits", len(in.Hits),
		"chars", len(out),
		"duration", elapsed,
		"status", status,
	)
	return out, err
}
