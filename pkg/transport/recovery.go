package transport

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/rhuss/tradelens/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to a 500 response. The server continues to accept new
// requests after a panic is recovered. http.ErrAbortHandler is re-raised so
// net/http can abort the connection as intended.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				WriteAPIError(w, api.NewServerError("internal server error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
