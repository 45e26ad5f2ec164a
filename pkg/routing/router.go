// Package routing maps free-text queries onto index partitions.
//
// Routing is keyword based. Rules are checked in order and the first rule
// with a keyword contained in the lower-cased query selects the namespace.
// Queries that match no rule go to the fallback namespace.
package routing

import (
	"fmt"
	"strings"

	"github.com/rhuss/tradelens/pkg/api"
)

// Rule routes queries containing any of Keywords to Namespace.
type Rule struct {
	Namespace  api.Namespace  `yaml:"namespace" json:"namespace"`
	RecordType api.RecordType `yaml:"record_type" json:"record_type"`
	Keywords   []string       `yaml:"keywords" json:"keywords"`
}

// Target is a namespace together with the record type it holds.
type Target struct {
	Namespace  api.Namespace  `yaml:"namespace" json:"namespace"`
	RecordType api.RecordType `yaml:"record_type" json:"record_type"`
}

// DefaultRules returns the built-in routing table.
func DefaultRules() []Rule {
	return []Rule{
		{Namespace: api.NamespaceExporters, RecordType: api.RecordTypeExporter, Keywords: []string{"exporter"}},
		{Namespace: api.NamespaceImporters, RecordType: api.RecordTypeImporter, Keywords: []string{"importer", "buyer"}},
		{Namespace: api.NamespaceGlobalNews, RecordType: api.RecordTypeNews, Keywords: []string{"news", "risk"}},
	}
}

// DefaultFallback returns the target used when no rule matches.
func DefaultFallback() Target {
	return Target{Namespace: api.NamespaceExporters, RecordType: api.RecordTypeExporter}
}

// Router holds an ordered rule set. It is immutable after New and safe for
// concurrent use.
type Router struct {
	rules    []Rule
	fallback Target
}

// New validates the rules and builds a Router. Keywords are lower-cased.
func New(rules []Rule, fallback Target) (*Router, error) {
	if fallback.Namespace == "" {
		return nil, fmt.Errorf("routing: fallback namespace is required")
	}
	if !fallback.RecordType.Valid() {
		return nil, fmt.Errorf("routing: fallback record type %q is unknown", fallback.RecordType)
	}

	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if r.Namespace == "" {
			return nil, fmt.Errorf("routing: rule %d: namespace is required", i)
		}
		if r.Namespace == api.NamespaceAll {
			return nil, fmt.Errorf("routing: rule %d: namespace %q is reserved", i, api.NamespaceAll)
		}
		if !r.RecordType.Valid() {
			return nil, fmt.Errorf("routing: rule %d: record type %q is unknown", i, r.RecordType)
		}

		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("routing: rule %d (%s): at least one keyword is required", i, r.Namespace)
		}

		out = append(out, Rule{Namespace: r.Namespace, RecordType: r.RecordType, Keywords: keywords})
	}

	return &Router{rules: out, fallback: fallback}, nil
}

// Default returns a Router with the built-in rules.
func Default() *Router {
	r, err := New(DefaultRules(), DefaultFallback())
	if err != nil {
		panic(err)
	}
	return r
}

// Detect picks the namespace for a query by keyword containment.
func (r *Router) Detect(query string) (api.Namespace, api.RecordType) {
	q := strings.ToLower(query)
	for _, rule := range r.rules {
		for _, k := range rule.Keywords {
			if strings.Contains(q, k) {
				return rule.Namespace, rule.RecordType
			}
		}
	}
	return r.fallback.Namespace, r.fallback.RecordType
}

// Resolve applies an explicit namespace override, falling back to Detect.
// For api.NamespaceAll the record type still comes from Detect.
func (r *Router) Resolve(query string, override api.Namespace) (api.Namespace, api.RecordType) {
	switch override {
	case "":
		return r.Detect(query)
	case api.NamespaceAll:
		_, rt := r.Detect(query)
		return api.NamespaceAll, rt
	}
	if rt, ok := r.recordType(override); ok {
		return override, rt
	}
	return r.Detect(query)
}

// Namespaces returns every routable namespace in rule order, fallback last,
// without duplicates.
func (r *Router) Namespaces() []api.Namespace {
	seen := make(map[api.Namespace]bool)
	var out []api.Namespace
	for _, rule := range r.rules {
		if !seen[rule.Namespace] {
			seen[rule.Namespace] = true
			out = append(out, rule.Namespace)
		}
	}
	if !seen[r.fallback.Namespace] {
		out = append(out, r.fallback.Namespace)
	}
	return out
}

// Rules returns a copy of the routing table.
func (r *Router) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = Rule{
			Namespace:  rule.Namespace,
			RecordType: rule.RecordType,
			Keywords:   append([]string(nil), rule.Keywords...),
		}
	}
	return out
}

// Fallback returns the target used when no keyword matches.
func (r *Router) Fallback() Target {
	return r.fallback
}

func (r *Router) recordType(ns api.Namespace) (api.RecordType, bool) {
	for _, rule := range r.rules {
		if rule.Namespace == ns {
			return rule.RecordType, true
		}
	}
	if r.fallback.Namespace == ns {
		return r.fallback.RecordType, true
	}
	return "", false
}
