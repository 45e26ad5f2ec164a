package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/render"
	"github.com/rhuss/tradelens/pkg/transport"
)

// User-facing messages on the search page.
const (
	msgEmptyQuery  = "Please enter a search query."
	msgUnavailable = "The search service is temporarily unavailable. Please try again."
	msgInternal    = "Something went wrong while answering your query. Please try again."
)

// handleIndex handles GET /.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.writePage(w, r, http.StatusOK, h.newPage(r, "", "", h.engine.SummarizeByDefault()))
}

// handleSearch handles POST / from the search form.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		page := h.newPage(r, "", "", h.engine.SummarizeByDefault())
		page.Error = transport.AsAPIError(err).Message
		h.writePage(w, r, http.StatusBadRequest, page)
		return
	}

	query := r.PostFormValue("query")
	namespace := api.Namespace(r.PostFormValue("namespace"))
	summarize, _ := strconv.ParseBool(r.PostFormValue("summarize"))

	page := h.newPage(r, query, namespace, summarize)

	req := &api.QueryRequest{Query: query, Namespace: namespace}
	if h.engine.CanSummarize() {
		req.Summarize = &summarize
	}

	ans, err := h.engine.Answer(r.Context(), req)
	if err != nil {
		status, msg := pageError(err)
		page.Error = msg
		h.writePage(w, r, status, page)
		return
	}

	page.Answer = ans
	page.RecordType = ans.RecordType
	h.writePage(w, r, http.StatusOK, page)
}

func (h *Handler) newPage(r *http.Request, query string, namespace api.Namespace, summarize bool) *render.Page {
	return &render.Page{
		Title:      h.opts.Title,
		Query:      query,
		Namespace:  namespace,
		Namespaces: render.NewNamespaceOptions(h.engine.Router().Namespaces(), namespace),
		Summarize:  summarize && h.engine.CanSummarize(),
		RequestID:  transport.RequestIDFromContext(r.Context()),
	}
}

// pageError maps a pipeline error to a status and a message that is safe
// to show on the page.
func pageError(err error) (int, string) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError, msgInternal
	}
	switch apiErr.Type {
	case api.ErrorTypeInvalidRequest:
		if apiErr.Param == "query" && apiErr.Message == "query is required" {
			return http.StatusBadRequest, msgEmptyQuery
		}
		return http.StatusBadRequest, apiErr.Message
	case api.ErrorTypeUpstream:
		return http.StatusBadGateway, msgUnavailable
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests, apiErr.Message
	}
	return http.StatusInternalServerError, msgInternal
}

// writePage renders into a buffer first so a template failure still
// produces a clean 500.
func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, status int, page *render.Page) {
	var buf bytes.Buffer
	if err := render.RenderPage(&buf, page); err != nil {
		h.logger.ErrorContext(r.Context(), "page render failed", "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
