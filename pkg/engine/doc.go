// Package engine implements the tradelens query pipeline. The Engine
// validates a question, routes it to an index namespace, retrieves the
// nearest records, formats them, optionally asks a model for a summary,
// and records the query in history. Optional capabilities (summarizer,
// history store) use nil-safe composition for graceful degradation.
package engine
