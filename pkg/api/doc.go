// Package api defines the core types shared by the tradelens query pipeline.
//
// A [QueryRequest] carries the free-text question and optional overrides
// (namespace, result count, summarisation). The pipeline answers it with an
// [Answer]: the routed namespace, the nearest-neighbour [Hit] records, the
// plain-text rendering of those records and an optional model summary.
//
// Errors that cross the HTTP boundary are [APIError] values. Each error type
// maps to one HTTP status via [APIError.HTTPStatus].
//
// The package performs no I/O.
package api
