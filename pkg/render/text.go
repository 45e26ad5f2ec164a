// Package render turns retrieval results into text and HTML.
package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rhuss/tradelens/pkg/api"
)

// NoResults is the exact text produced for an empty result set.
const NoResults = "No results found for your query."

const separator = "------------------------"

// BuildOutput formats hits as the plain-text block list shown to users and
// passed to summarizers. Hits are emitted in the order given.
func BuildOutput(hits []api.Hit) string {
	if len(hits) == 0 {
		return NoResults
	}

	var b strings.Builder
	for _, h := range hits {
		b.WriteString("\nID: ")
		b.WriteString(h.ID)
		b.WriteString("\nScore: ")
		b.WriteString(FormatScore(h.Score))
		b.WriteString("\nDetails: ")
		b.WriteString(FormatFields(h.Fields))
		b.WriteString("\n")
		b.WriteString(separator)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatScore prints a similarity score in its shortest round-trip form.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// FormatFields prints a record's fields as {'key': value, ...} with keys
// sorted. Strings are single-quoted, numbers and booleans are printed
// bare, and anything else is JSON-encoded.
func FormatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(k))
		b.WriteString(": ")
		b.WriteString(formatValue(fields[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(x)
	case json.Number:
		return x.String()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
