// Command mock-backend runs a deterministic stand-in for the hosted
// services tradelens depends on, for local development and smoke tests.
//
// It serves:
//   - the Pinecone control plane (GET /indexes/{name}) pointing back at itself
//   - the Pinecone data plane (POST /records/namespaces/{ns}/search) over a
//     small built-in trade dataset, scored by keyword overlap
//   - an OpenAI-compatible POST /v1/chat/completions that summarises the
//     records found in the prompt
//
// Configuration:
//
//	MOCK_PORT    - Listen port (default: 9090)
//	MOCK_API_KEY - Api-Key required by the Pinecone endpoints (default: any)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	b := &backend{
		apiKey:  os.Getenv("MOCK_API_KEY"),
		host:    "http://localhost:" + port,
		records: seedRecords(),
	}

	srv := &http.Server{Addr: ":" + port, Handler: b.routes()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// backend holds the fake dataset and the settings shared by all handlers.
type backend struct {
	apiKey  string
	host    string
	records map[string][]record
}

func (b *backend) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes/{name}", b.requireKey(b.handleDescribeIndex))
	mux.HandleFunc("POST /records/namespaces/{namespace}/search", b.requireKey(b.handleSearch))
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// requireKey rejects requests without the configured Api-Key. An empty
// key accepts any caller that sends one.
func (b *backend) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Api-Key")
		if key == "" || (b.apiKey != "" && key != b.apiKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"code": "UNAUTHENTICATED", "message": "invalid api key"},
			})
			return
		}
		next(w, r)
	}
}
