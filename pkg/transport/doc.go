// Package transport holds the HTTP plumbing shared by the tradelens
// front-end: the middleware chain and the JSON error envelope.
//
// # Middleware
//
// Middleware wraps an http.Handler. Built-in middleware provides panic
// recovery, request ID assignment (X-Request-ID), structured access logging
// via log/slog and a request body size limit. Chain(a, b, c) produces
// a(b(c(handler))), so the first middleware sees the request first.
//
// # Errors
//
// Errors leave the service as {"error": {...}} bodies built from
// [api.APIError]. The HTTP status comes from the error type.
package transport
