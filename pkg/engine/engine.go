package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/debug"
	"github.com/rhuss/tradelens/pkg/history"
	"github.com/rhuss/tradelens/pkg/observability"
	"github.com/rhuss/tradelens/pkg/render"
	"github.com/rhuss/tradelens/pkg/routing"
	"github.com/rhuss/tradelens/pkg/search"
	"github.com/rhuss/tradelens/pkg/summarize"
)

// historyTimeout bounds the best-effort history write.
const historyTimeout = 5 * time.Second

// Engine runs questions through routing, retrieval, formatting and the
// optional summary step.
type Engine struct {
	router     *routing.Router
	index      search.Index
	summarizer summarize.Summarizer
	store      history.Store
	cfg        Config
	now        func() time.Time
}

// New creates a new Engine. The router and index must not be nil. The
// summarizer and store can be nil, which disables summaries and history.
func New(router *routing.Router, idx search.Index, s summarize.Summarizer, store history.Store, cfg Config) (*Engine, error) {
	if router == nil {
		return nil, fmt.Errorf("engine: router must not be nil")
	}
	if idx == nil {
		return nil, fmt.Errorf("engine: index must not be nil")
	}
	if cfg.Validation == (api.ValidationConfig{}) {
		cfg.Validation = api.DefaultValidationConfig()
	}
	return &Engine{
		router:     router,
		index:      idx,
		summarizer: s,
		store:      store,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// Router returns the routing table used by the engine.
func (e *Engine) Router() *routing.Router { return e.router }

// Store returns the history store, or nil when history is disabled.
func (e *Engine) Store() history.Store { return e.store }

// CanSummarize reports whether a summarizer is configured.
func (e *Engine) CanSummarize() bool { return e.summarizer != nil }

// SummarizeByDefault reports the default used when a request leaves
// summarize unset.
func (e *Engine) SummarizeByDefault() bool { return e.cfg.Summarize && e.summarizer != nil }

// Answer runs req through the pipeline. Validation failures and retrieval
// failures are returned as *api.APIError. Summary failures never fail the
// call; they are reported in Answer.SummaryError.
func (e *Engine) Answer(ctx context.Context, req *api.QueryRequest) (*api.Answer, error) {
	start := e.now()

	if apiErr := api.ValidateQuery(req, e.cfg.Validation, e.router.Namespaces()); apiErr != nil {
		observability.QueriesTotal.WithLabelValues("none", "invalid").Inc()
		return nil, apiErr
	}

	namespace, recordType := e.router.Resolve(req.Query, req.Namespace)
	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.topK()
	}

	debug.Log("engine", "query routed",
		"namespace", namespace,
		"record_type", recordType,
		"override", req.Namespace,
		"top_k", topK,
	)

	hits, err := e.retrieve(ctx, namespace, req.Query, topK)
	if err != nil {
		observability.QueriesTotal.WithLabelValues(string(namespace), "error").Inc()
		return nil, toAPIError(err)
	}

	ans := &api.Answer{
		ID:         api.NewAnswerID(),
		Query:      req.Query,
		Namespace:  namespace,
		RecordType: recordType,
		Hits:       hits,
		Text:       render.BuildOutput(hits),
		CreatedAt:  start.Unix(),
	}
	if ans.Hits == nil {
		ans.Hits = []api.Hit{}
	}

	if e.wantSummary(req) && len(hits) > 0 {
		e.summarize(ctx, ans)
	}

	ans.Duration = e.now().Sub(start)
	e.record(ctx, ans)

	outcome := "ok"
	if len(hits) == 0 {
		outcome = "empty"
	}
	observability.QueriesTotal.WithLabelValues(string(namespace), outcome).Inc()

	return ans, nil
}

func (e *Engine) wantSummary(req *api.QueryRequest) bool {
	if e.summarizer == nil {
		return false
	}
	if req.Summarize != nil {
		return *req.Summarize
	}
	return e.cfg.Summarize
}

// summarize fills ans.Summary, or ans.SummaryError when the model call
// fails or panics. The raw text is always kept.
func (e *Engine) summarize(ctx context.Context, ans *api.Answer) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.summaryTimeout())
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "summarizer panicked", "answer_id", ans.ID, "panic", r)
			ans.Summary = ""
			ans.SummaryError = "summary failed"
		}
	}()

	out, err := e.summarizer.Summarize(sctx, summarize.Input{
		Query:      ans.Query,
		Namespace:  ans.Namespace,
		RecordType: ans.RecordType,
		Hits:       ans.Hits,
	})
	if err != nil {
		slog.WarnContext(ctx, "summary failed, returning raw results",
			"answer_id", ans.ID,
			"provider", e.summarizer.Provider(),
			"error", err,
		)
		ans.SummaryError = summaryErrorMessage(sctx, err)
		return
	}
	ans.Summary = out
}

// summaryErrorMessage picks the user-facing text for a failed summary.
// Upstream messages and transport errors are only logged; they may carry
// raw backend bodies or internal addresses.
func summaryErrorMessage(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "summary timed out"
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case api.ErrorTypeUpstream:
			return "summary service unavailable"
		case api.ErrorTypeTooManyRequests:
			return "summary service is busy, try again later"
		}
	}
	return "summary failed"
}

// record saves ans to history. Failures are logged and ignored.
func (e *Engine) record(ctx context.Context, ans *api.Answer) {
	if e.store == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	if err := e.store.Save(hctx, history.FromAnswer(ans)); err != nil {
		slog.WarnContext(ctx, "failed to record query history", "answer_id", ans.ID, "error", err)
	}
}

// toAPIError maps retrieval failures onto the API error types.
func toAPIError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewUpstreamError("search service timed out")
	}
	return api.NewUpstreamError("search service unavailable")
}
