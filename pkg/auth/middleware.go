package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/history"
	"github.com/rhuss/tradelens/pkg/observability"
)

// Middleware authenticates requests with chain, applies limiter when
// non-nil, and injects the identity and its tenant into the context.
func Middleware(chain *Chain, limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := chain.Authenticate(r.Context(), r)

			if res.Decision != Yes || res.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", res.Err,
				)
				writeError(w, api.NewUnauthorizedError("authentication required"))
				return
			}

			if res.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				writeError(w, api.NewServerError("internal authentication error"))
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), res.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", res.Identity.Subject,
						"tier", res.Identity.Tier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(tierLabel(res.Identity.Tier)).Inc()
					w.Header().Set("Retry-After", "60")
					writeError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			ctx := SetIdentity(r.Context(), res.Identity)
			if res.Identity.Tenant != "" {
				ctx = history.SetTenant(ctx, res.Identity.Tenant)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tierLabel(tier string) string {
	if tier == "" {
		return "default"
	}
	return tier
}

func writeError(w http.ResponseWriter, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	if apiErr.Type == api.ErrorTypeUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="tradelens"`)
	}
	w.WriteHeader(apiErr.HTTPStatus())
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}
