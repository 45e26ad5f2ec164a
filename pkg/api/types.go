package api

import "time"

// Namespace names one partition of the vector index.
type Namespace string

const (
	NamespaceExporters  Namespace = "exporters"
	NamespaceImporters  Namespace = "importers"
	NamespaceGlobalNews Namespace = "global_news"

	// NamespaceAll is not stored in the index. It asks for a search across
	// every configured partition.
	NamespaceAll Namespace = "all"
)

// RecordType describes what kind of record a namespace holds.
type RecordType string

const (
	RecordTypeExporter RecordType = "exporter"
	RecordTypeImporter RecordType = "importer"
	RecordTypeNews     RecordType = "news"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	switch t {
	case RecordTypeExporter, RecordTypeImporter, RecordTypeNews:
		return true
	}
	return false
}

// QueryRequest is a single trade-intelligence question.
type QueryRequest struct {
	Query string `json:"query"`

	// Namespace overrides keyword routing when set.
	Namespace Namespace `json:"namespace,omitempty"`

	// TopK is the number of records to retrieve. Zero selects the server default.
	TopK int `json:"top_k,omitempty"`

	// Summarize requests a model summary. Nil selects the server default.
	Summarize *bool `json:"summarize,omitempty"`
}

// Hit is one nearest-neighbour record returned by the index.
type Hit struct {
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	Namespace Namespace      `json:"namespace,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Answer is the result of running a QueryRequest through the pipeline.
type Answer struct {
	ID         string     `json:"id"`
	Query      string     `json:"query"`
	Namespace  Namespace  `json:"namespace"`
	RecordType RecordType `json:"record_type"`
	Hits       []Hit      `json:"hits"`

	// Text is the plain-text rendering of Hits.
	Text string `json:"text"`

	// Summary holds the model output when summarisation ran and succeeded.
	Summary string `json:"summary,omitempty"`

	// SummaryError is set when summarisation was requested but failed.
	// Text is still populated in that case.
	SummaryError string `json:"summary_error,omitempty"`

	CreatedAt int64         `json:"created_at"`
	Duration  time.Duration `json:"-"`
}
