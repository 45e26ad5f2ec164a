// Package summarize condenses retrieved trade records into a short answer
// using a language model. Summaries are optional; callers always keep the
// plain-text rendering as a fallback.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/render"
)

// Summarizer produces a natural-language answer from retrieved records.
type Summarizer interface {
	// Summarize returns the model's answer for in. Implementations return
	// an empty string without calling the model when in has no hits.
	Summarize(ctx context.Context, in Input) (string, error)

	// Provider returns a short provider name used in logs and metrics.
	Provider() string
}

// Input carries everything a summarizer needs to answer one query.
type Input struct {
	Query      string
	Namespace  api.Namespace
	RecordType api.RecordType
	Hits       []api.Hit
}

const groundingRule = " Answer only from the records provided. If the records do not contain the answer, say so. Never invent companies, figures, or contact details. Cite record IDs in square brackets."

// SystemInstruction returns the analyst persona for a record type.
func SystemInstruction(rt api.RecordType) string {
	var role string
	switch rt {
	case api.RecordTypeImporter:
		role = "You are a trade analyst helping exporters find importers and buyers for their products."
	case api.RecordTypeNews:
		role = "You are a trade risk analyst summarising global trade news, sanctions, and market risks."
	default:
		role = "You are a trade analyst helping buyers find reliable exporters and suppliers."
	}
	return role + groundingRule
}

// BuildPrompt builds the user prompt with the records wrapped in tags
// followed by the question.
func BuildPrompt(in Input) string {
	var sb strings.Builder
	sb.WriteString("<records>\n")
	for i, h := range in.Hits {
		sb.WriteString("<record>\n")
		fmt.Fprintf(&sb, "<index>%d</index>\n", i+1)
		fmt.Fprintf(&sb, "<id>%s</id>\n", h.ID)
		fmt.Fprintf(&sb, "<score>%s</score>\n", render.FormatScore(h.Score))
		if h.Namespace != "" {
			fmt.Fprintf(&sb, "<namespace>%s</namespace>\n", h.Namespace)
		}
		fmt.Fprintf(&sb, "<fields>%s</fields>\n", render.FormatFields(h.Fields))
		sb.WriteString("</record>\n")
	}
	sb.WriteString("</records>\n\n")
	fmt.Fprintf(&sb, "Question: %s", in.Query)
	return sb.String()
}
