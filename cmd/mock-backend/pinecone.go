package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// record is one entry of the fake index.
type record struct {
	ID     string
	Fields map[string]any
}

// text is the searchable content of a record.
func (r record) text() string {
	var parts []string
	for _, v := range r.Fields {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func seedRecords() map[string][]record {
	return map[string][]record{
		"exporters": {
			{ID: "exp-001", Fields: map[string]any{"company": "Kugellager Werke GmbH", "country": "Germany", "product": "ball bearings", "hs_code": "8482"}},
			{ID: "exp-002", Fields: map[string]any{"company": "Anadolu Boru A.S.", "country": "Turkey", "product": "steel pipes", "hs_code": "7306"}},
			{ID: "exp-003", Fields: map[string]any{"company": "Vina Seafood Co.", "country": "Vietnam", "product": "frozen shrimp", "hs_code": "0306"}},
			{ID: "exp-004", Fields: map[string]any{"company": "Andes Copper SpA", "country": "Chile", "product": "copper cathodes", "hs_code": "7403"}},
		},
		"importers": {
			{ID: "imp-001", Fields: map[string]any{"company": "Mariscos Iberia S.L.", "country": "Spain", "product": "frozen shrimp", "annual_volume_tons": 1200}},
			{ID: "imp-002", Fields: map[string]any{"company": "Nordic Bearings AB", "country": "Sweden", "product": "ball bearings", "annual_volume_tons": 85}},
			{ID: "imp-003", Fields: map[string]any{"company": "Gulf Steel Trading LLC", "country": "UAE", "product": "steel pipes", "annual_volume_tons": 40000}},
		},
		"global_news": {
			{ID: "news-001", Fields: map[string]any{"headline": "Red Sea shipping disruptions extend transit times", "region": "Middle East", "risk": "high"}},
			{ID: "news-002", Fields: map[string]any{"headline": "EU raises safeguard duties on steel imports", "region": "Europe", "risk": "medium"}},
			{ID: "news-003", Fields: map[string]any{"headline": "Chile copper output recovers after strike", "region": "South America", "risk": "low"}},
		},
	}
}

type searchRequest struct {
	Query struct {
		Inputs map[string]string `json:"inputs"`
		TopK   int               `json:"top_k"`
	} `json:"query"`
	Fields []string `json:"fields"`
}

type searchHit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Fields map[string]any `json:"fields"`
}

// handleDescribeIndex answers the control plane lookup with this server as
// the data plane host.
func (b *backend) handleDescribeIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   r.PathValue("name"),
		"host":   b.host,
		"status": map[string]any{"ready": true, "state": "Ready"},
	})
}

// handleSearch scores every record of the namespace by the share of query
// words it contains and returns the best top_k.
func (b *backend) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": "INVALID_ARGUMENT", "message": err.Error()},
		})
		return
	}
	text := req.Query.Inputs["text"]
	if text == "" || req.Query.TopK <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": "INVALID_ARGUMENT", "message": "query.inputs.text and query.top_k are required"},
		})
		return
	}

	hits := rank(b.records[r.PathValue("namespace")], text, req.Query.TopK, req.Fields)
	writeJSON(w, http.StatusOK, map[string]any{
		"result": map[string]any{"hits": hits},
		"usage":  map[string]any{"read_units": 1, "embed_total_tokens": len(strings.Fields(text))},
	})
}

func rank(records []record, query string, topK int, fields []string) []searchHit {
	words := strings.Fields(strings.ToLower(query))
	hits := make([]searchHit, 0, len(records))
	for _, rec := range records {
		body := rec.text()
		matched := 0
		for _, w := range words {
			if strings.Contains(body, w) {
				matched++
			}
		}
		score := 0.0
		if len(words) > 0 {
			score = float64(matched) / float64(len(words))
		}
		hits = append(hits, searchHit{ID: rec.ID, Score: score, Fields: project(rec.Fields, fields)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// project keeps only the requested fields. No list keeps everything.
func project(all map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return all
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := all[f]; ok {
			out[f] = v
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
