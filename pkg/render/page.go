package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/rhuss/tradelens/pkg/api"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("index.html").
		Funcs(template.FuncMap{
			"score":  FormatScore,
			"fields": FormatFields,
		}).
		ParseFS(templateFS, "templates/index.html"),
)

// NamespaceOption is one entry of the namespace selector.
type NamespaceOption struct {
	Value    string
	Label    string
	Selected bool
}

// Page holds everything the search page template renders.
type Page struct {
	Title      string
	Query      string
	Namespace  api.Namespace
	RecordType api.RecordType
	Namespaces []NamespaceOption

	// Summarize reflects the state of the summary checkbox.
	Summarize bool

	// Answer is nil when no search has run yet.
	Answer *api.Answer

	// Error is a user-facing message shown above the form.
	Error string

	RequestID string
}

// SummaryHTML returns the sanitised HTML form of the answer's summary.
func (p *Page) SummaryHTML() template.HTML {
	if p.Answer == nil {
		return ""
	}
	return Markdown(p.Answer.Summary)
}

// NewNamespaceOptions builds selector entries for namespaces, with an
// "auto" entry first and an "all" entry last. The entry matching selected
// is marked.
func NewNamespaceOptions(namespaces []api.Namespace, selected api.Namespace) []NamespaceOption {
	opts := make([]NamespaceOption, 0, len(namespaces)+2)
	opts = append(opts, NamespaceOption{Value: "", Label: "auto (keyword routing)", Selected: selected == ""})
	for _, ns := range namespaces {
		opts = append(opts, NamespaceOption{Value: string(ns), Label: string(ns), Selected: ns == selected})
	}
	opts = append(opts, NamespaceOption{
		Value:    string(api.NamespaceAll),
		Label:    "all namespaces",
		Selected: selected == api.NamespaceAll,
	})
	return opts
}

// RenderPage writes the search page to w.
func RenderPage(w io.Writer, p *Page) error {
	if p.Title == "" {
		p.Title = "Trade Intelligence Search"
	}
	if err := pageTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return nil
}
