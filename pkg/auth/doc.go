// Package auth protects the tradelens JSON and MCP endpoints.
//
// Authenticators vote Yes, No or Abstain on each request and a Chain
// evaluates them in order; a default decision applies when all abstain.
// The middleware injects the caller identity and its tenant into the
// request context so history is scoped per tenant, and enforces per-tier
// rate limits.
package auth
