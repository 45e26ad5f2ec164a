package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/auth"
	"github.com/rhuss/tradelens/pkg/auth/apikey"
	"github.com/rhuss/tradelens/pkg/engine"
	"github.com/rhuss/tradelens/pkg/history"
	"github.com/rhuss/tradelens/pkg/history/memory"
	"github.com/rhuss/tradelens/pkg/routing"
	"github.com/rhuss/tradelens/pkg/summarize"
)

// fakeIndex returns canned hits per namespace and remembers the last call.
type fakeIndex struct {
	mu        sync.Mutex
	hits      map[api.Namespace][]api.Hit
	err       error
	lastNS    api.Namespace
	lastQuery string
}

func (f *fakeIndex) Search(_ context.Context, ns api.Namespace, text string, topK int) ([]api.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastNS, f.lastQuery = ns, text
	if f.err != nil {
		return nil, f.err
	}
	hits := f.hits[ns]
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *fakeIndex) Backend() string { return "fake" }

func (f *fakeIndex) namespace() api.Namespace {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastNS
}

type fakeSummarizer struct{ text string }

func (f *fakeSummarizer) Summarize(context.Context, summarize.Input) (string, error) {
	return f.text, nil
}

func (f *fakeSummarizer) Provider() string { return "fake" }

type downStore struct{ history.Store }

func (downStore) HealthCheck(context.Context) error { return errors.New("connection refused") }

func sampleHits() map[api.Namespace][]api.Hit {
	return map[api.Namespace][]api.Hit{
		api.NamespaceExporters: {
			{ID: "exp-1", Score: 0.91, Fields: map[string]any{"company": "Kugellager GmbH", "country": "Germany"}},
			{ID: "exp-2", Score: 0.84, Fields: map[string]any{"company": "Rulman A.S.", "country": "Turkey"}},
		},
		api.NamespaceImporters: {
			{ID: "imp-1", Score: 0.77, Fields: map[string]any{"company": "Mariscos Iberia", "product": "frozen shrimp"}},
		},
	}
}

type testEnv struct {
	index   *fakeIndex
	store   history.Store
	handler *Handler
}

func newTestEnv(t *testing.T, s summarize.Summarizer, store history.Store, opts Options) *testEnv {
	t.Helper()
	idx := &fakeIndex{hits: sampleHits()}
	eng, err := engine.New(routing.Default(), idx, s, store, engine.Config{Summarize: s != nil})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return &testEnv{index: idx, store: store, handler: NewHandler(eng, opts)}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func parseHTML(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatalf("parsing HTML: %v", err)
	}
	return doc
}

func TestIndexRendersForm(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	doc := parseHTML(t, rec)
	if doc.Find("form input[name=query]").Length() != 1 {
		t.Error("query input missing")
	}
	// auto + three namespaces + all
	if n := doc.Find("select[name=namespace] option").Length(); n != 5 {
		t.Errorf("namespace options = %d, want 5", n)
	}
	if doc.Find("#answer").Length() != 0 {
		t.Error("answer section rendered before any search")
	}
	if doc.Find("footer").Length() != 1 {
		t.Error("request ID footer missing")
	}
}

func TestUnknownPathNotFound(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSearchRendersAnswer(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})

	rec := env.do(t, postForm(url.Values{"query": {"german exporter of ball bearings"}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ns := env.index.namespace(); ns != api.NamespaceExporters {
		t.Errorf("searched namespace = %q, want exporters", ns)
	}

	doc := parseHTML(t, rec)
	if got := doc.Find("#namespace").Text(); got != "exporters" {
		t.Errorf("#namespace = %q", got)
	}
	if n := doc.Find("tr.hit").Length(); n != 2 {
		t.Fatalf("hit rows = %d, want 2", n)
	}
	if got := doc.Find("tr.hit td.id").First().Text(); got != "exp-1" {
		t.Errorf("first hit = %q, want exp-1", got)
	}
	if got := doc.Find("tr.hit td.score").First().Text(); got != "0.91" {
		t.Errorf("first score = %q, want 0.91", got)
	}
	out := doc.Find("#output").Text()
	if !strings.Contains(out, "ID: exp-1") || !strings.Contains(out, "Details: {'company': 'Kugellager GmbH', 'country': 'Germany'}") {
		t.Errorf("raw output = %q", out)
	}
	if v, _ := doc.Find("input[name=query]").Attr("value"); v != "german exporter of ball bearings" {
		t.Errorf("query not echoed into form: %q", v)
	}
}

func TestSearchRoutesBuyersToImporters(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})
	env.do(t, postForm(url.Values{"query": {"Spanish buyer of frozen shrimp"}}))
	if ns := env.index.namespace(); ns != api.NamespaceImporters {
		t.Errorf("searched namespace = %q, want importers", ns)
	}
}

func TestSearchNamespaceOverride(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})
	rec := env.do(t, postForm(url.Values{"query": {"shrimp"}, "namespace": {"importers"}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec)
	if v, _ := doc.Find("select[name=namespace] option[selected]").Attr("value"); v != "importers" {
		t.Errorf("selected option = %q, want importers", v)
	}
}

func TestSearchNoResults(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})
	rec := env.do(t, postForm(url.Values{"query": {"shipping risk news"}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec)
	if got := doc.Find("#output").Text(); got != "No results found for your query." {
		t.Errorf("#output = %q", got)
	}
	if doc.Find("#hits").Length() != 0 {
		t.Error("hits table rendered for empty result")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})
	rec := env.do(t, postForm(url.Values{"query": {"   "}}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	doc := parseHTML(t, rec)
	if got := doc.Find("#error").Text(); got != msgEmptyQuery {
		t.Errorf("#error = %q", got)
	}
}

func TestSearchUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})
	env.index.err = errors.New("pinecone returned status 503")

	rec := env.do(t, postForm(url.Values{"query": {"exporter of copper"}}))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	doc := parseHTML(t, rec)
	if got := doc.Find("#error").Text(); got != msgUnavailable {
		t.Errorf("#error = %q", got)
	}
	if strings.Contains(rec.Body.String(), "503") {
		t.Error("upstream detail leaked into page")
	}
}

func TestSearchWithSummary(t *testing.T) {
	env := newTestEnv(t, &fakeSummarizer{text: "**Kugellager GmbH** is the closest match."}, nil, Options{})

	rec := env.do(t, postForm(url.Values{"query": {"exporter of bearings"}, "summarize": {"true"}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec)
	if got := doc.Find("#summary strong").Text(); got != "Kugellager GmbH" {
		t.Errorf("summary markdown not rendered: %q", got)
	}
	if _, ok := doc.Find("input[name=summarize]").Attr("checked"); !ok {
		t.Error("summarize checkbox should stay checked")
	}
}

func TestSearchSummaryOptOut(t *testing.T) {
	env := newTestEnv(t, &fakeSummarizer{text: "unused"}, nil, Options{})

	// An unchecked checkbox is absent from the form.
	rec := env.do(t, postForm(url.Values{"query": {"exporter of bearings"}}))
	doc := parseHTML(t, rec)
	if doc.Find("#summary").Length() != 0 {
		t.Error("summary rendered although the checkbox was off")
	}
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *api.APIError {
	t.Helper()
	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error == nil {
		t.Fatal("error body missing error field")
	}
	return body.Error
}

func TestQueryAPI(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})

	rec := env.do(t, postJSON("/v1/query", `{"query":"importer of shrimp","top_k":1}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var ans api.Answer
	if err := json.NewDecoder(rec.Body).Decode(&ans); err != nil {
		t.Fatalf("decoding answer: %v", err)
	}
	if ans.Namespace != api.NamespaceImporters || ans.RecordType != api.RecordTypeImporter {
		t.Errorf("routed to %s/%s", ans.Namespace, ans.RecordType)
	}
	if len(ans.Hits) != 1 || ans.Hits[0].ID != "imp-1" {
		t.Errorf("hits = %+v", ans.Hits)
	}
	if !api.ValidateAnswerID(ans.ID) {
		t.Errorf("answer ID = %q", ans.ID)
	}
}

func TestQueryAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		indexErr   error
		wantStatus int
		wantType   api.ErrorType
		wantParam  string
	}{
		{
			name:       "empty query",
			req:        postJSON("/v1/query", `{"query":""}`),
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
			wantParam:  "query",
		},
		{
			name:       "unknown namespace",
			req:        postJSON("/v1/query", `{"query":"steel","namespace":"suppliers"}`),
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
			wantParam:  "namespace",
		},
		{
			name:       "malformed JSON",
			req:        postJSON("/v1/query", `{"query":`),
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
			wantParam:  "body",
		},
		{
			name:       "unknown field",
			req:        postJSON("/v1/query", `{"query":"steel","model":"x"}`),
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
			wantParam:  "body",
		},
		{
			name: "wrong content type",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("query=steel"))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			}(),
			wantStatus: http.StatusUnsupportedMediaType,
			wantType:   api.ErrorTypeInvalidRequest,
			wantParam:  "content_type",
		},
		{
			name:       "upstream failure",
			req:        postJSON("/v1/query", `{"query":"exporter of steel"}`),
			indexErr:   errors.New("connection reset"),
			wantStatus: http.StatusBadGateway,
			wantType:   api.ErrorTypeUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil, Options{})
			env.index.err = tt.indexErr

			rec := env.do(t, tt.req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			apiErr := decodeError(t, rec)
			if apiErr.Type != tt.wantType || apiErr.Param != tt.wantParam {
				t.Errorf("error = %+v, want type %s param %q", apiErr, tt.wantType, tt.wantParam)
			}
		})
	}
}

func TestQueryAPIBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{MaxBodySize: 32})
	rec := env.do(t, postJSON("/v1/query", `{"query":"`+strings.Repeat("steel ", 20)+`"}`))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestNamespacesAPI(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/namespaces", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body namespacesResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(body.Namespaces) != 3 || len(body.Rules) != 3 {
		t.Errorf("namespaces = %v, rules = %d", body.Namespaces, len(body.Rules))
	}
	if body.Fallback.Namespace != api.NamespaceExporters {
		t.Errorf("fallback = %+v", body.Fallback)
	}
}

func TestHistoryAPI(t *testing.T) {
	env := newTestEnv(t, nil, memory.New(10), Options{})

	rec := env.do(t, postJSON("/v1/query", `{"query":"exporter of bearings"}`))
	var ans api.Answer
	json.NewDecoder(rec.Body).Decode(&ans)
	env.do(t, postJSON("/v1/query", `{"query":"buyer of shrimp"}`))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/history?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list historyListResponse
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Data) != 2 {
		t.Fatalf("history length = %d, want 2", len(list.Data))
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/history?namespace=importers", nil))
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Data) != 1 || list.Data[0].Namespace != api.NamespaceImporters {
		t.Errorf("filtered history = %+v", list.Data)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/history/"+ans.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got history.Record
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Query != "exporter of bearings" || got.HitCount != 2 {
		t.Errorf("record = %+v", got)
	}
}

func TestHistoryAPIErrors(t *testing.T) {
	env := newTestEnv(t, nil, memory.New(10), Options{})

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/v1/history/ans_000000000000000000000000", http.StatusNotFound},
		{"/v1/history/not-an-id", http.StatusBadRequest},
		{"/v1/history?limit=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.wantStatus {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
		}
	}

	disabled := newTestEnv(t, nil, nil, Options{})
	rec := disabled.do(t, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled history status = %d, want 404", rec.Code)
	}
}

func TestProbes(t *testing.T) {
	env := newTestEnv(t, nil, memory.New(10), Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}

	down := newTestEnv(t, nil, downStore{}, Options{})
	rec := down.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with unreachable store = %d, want 503", rec.Code)
	}
	rec = down.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{MetricsPath: "/metrics"})
	env.do(t, postJSON("/v1/query", `{"query":"exporter of steel"}`))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"tradelens_http_requests_total", `route="POST /v1/query"`, "tradelens_queries_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestAuthProtectsAPIOnly(t *testing.T) {
	chain := &auth.Chain{
		Authenticators: []auth.Authenticator{
			apikey.New([]apikey.Key{{Key: "tl-secret", Subject: "ci", Tenant: "acme"}}),
		},
		Default: auth.No,
	}
	store := memory.New(10)
	env := newTestEnv(t, nil, store, Options{Auth: auth.Middleware(chain, nil)})

	rec := env.do(t, postJSON("/v1/query", `{"query":"exporter of steel"}`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated API status = %d, want 401", rec.Code)
	}

	rec = env.do(t, postForm(url.Values{"query": {"exporter of steel"}}))
	if rec.Code != http.StatusOK {
		t.Errorf("HTML page status = %d, want 200 without credentials", rec.Code)
	}

	req := postJSON("/v1/query", `{"query":"exporter of steel"}`)
	req.Header.Set("Authorization", "Bearer tl-secret")
	rec = env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated API status = %d", rec.Code)
	}

	// The record saved through the API belongs to the key's tenant.
	ctx := history.SetTenant(context.Background(), "acme")
	records, err := store.List(ctx, history.ListOptions{})
	if err != nil || len(records) != 1 {
		t.Errorf("tenant records = %d (err %v), want 1", len(records), err)
	}
}

func TestMCPTradeSearch(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{MCPPath: "/mcp", Version: "test"})
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "handler-test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.URL + "/mcp"}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools.Tools) != 1 || tools.Tools[0].Name != TradeSearchTool {
		t.Fatalf("tools = %+v", tools.Tools)
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      TradeSearchTool,
		Arguments: map[string]any{"query": "german exporter of bearings"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool returned error: %+v", res.Content)
	}
	text := res.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "Namespace: exporters") || !strings.Contains(text, "ID: exp-1") {
		t.Errorf("tool text = %q", text)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      TradeSearchTool,
		Arguments: map[string]any{"query": ""},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if !res.IsError {
		t.Error("empty query should produce a tool error")
	}
}

func TestRecoveryFromHandlerPanic(t *testing.T) {
	env := newTestEnv(t, nil, nil, Options{})
	env.handler.mux.HandleFunc("GET /panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request ID header missing on recovered response")
	}
}
