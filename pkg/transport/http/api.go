package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/history"
	"github.com/rhuss/tradelens/pkg/routing"
	"github.com/rhuss/tradelens/pkg/transport"
)

// namespacesResponse is the body of GET /v1/namespaces.
type namespacesResponse struct {
	Namespaces []api.Namespace `json:"namespaces"`
	Rules      []routing.Rule  `json:"rules"`
	Fallback   routing.Target  `json:"fallback"`
}

// historyListResponse is the body of GET /v1/history.
type historyListResponse struct {
	Data []*history.Record `json:"data"`
}

// handleQuery handles POST /v1/query.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType)
			return
		}
	}

	var req api.QueryRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			transport.WriteErrorResponse(w, transport.AsAPIError(err), http.StatusRequestEntityTooLarge)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}

	ans, err := h.engine.Answer(r.Context(), &req)
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	transport.WriteJSON(w, http.StatusOK, ans)
}

// handleNamespaces handles GET /v1/namespaces.
func (h *Handler) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	router := h.engine.Router()
	transport.WriteJSON(w, http.StatusOK, namespacesResponse{
		Namespaces: router.Namespaces(),
		Rules:      router.Rules(),
		Fallback:   router.Fallback(),
	})
}

// handleListHistory handles GET /v1/history.
func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	store := h.engine.Store()
	if store == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("query history is disabled"))
		return
	}

	opts := history.ListOptions{Namespace: api.Namespace(r.URL.Query().Get("namespace"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			transport.WriteAPIError(w, api.NewInvalidRequestError("limit", "limit must be a non-negative integer"))
			return
		}
		opts.Limit = n
	}

	records, err := store.List(r.Context(), opts.Normalize())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "listing history failed", "error", err)
		transport.WriteAPIError(w, api.NewServerError("listing history failed"))
		return
	}
	if records == nil {
		records = []*history.Record{}
	}
	transport.WriteJSON(w, http.StatusOK, historyListResponse{Data: records})
}

// handleGetHistory handles GET /v1/history/{id}.
func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	store := h.engine.Store()
	if store == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("query history is disabled"))
		return
	}

	id := r.PathValue("id")
	if !api.ValidateAnswerID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "invalid answer ID format"))
		return
	}

	rec, err := store.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		transport.WriteAPIError(w, api.NewNotFoundError("history record "+id+" not found"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "reading history failed", "id", id, "error", err)
		transport.WriteAPIError(w, api.NewServerError("reading history failed"))
		return
	}
	transport.WriteJSON(w, http.StatusOK, rec)
}
