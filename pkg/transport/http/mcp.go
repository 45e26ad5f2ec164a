package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/engine"
)

// TradeSearchTool is the name of the MCP tool backed by the engine.
const TradeSearchTool = "trade_search"

// tradeSearchInput is the argument object of the trade_search tool.
type tradeSearchInput struct {
	Query     string `json:"query" jsonschema:"free-text trade question, e.g. german exporters of ball bearings"`
	Namespace string `json:"namespace,omitempty" jsonschema:"optional partition override: exporters, importers, global_news or all"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of records to retrieve"`
	Summarize *bool  `json:"summarize,omitempty" jsonschema:"ask for a model summary of the records"`
}

// tradeSearchOutput is the structured result of the trade_search tool.
type tradeSearchOutput struct {
	AnswerID   string `json:"answer_id"`
	Namespace  string `json:"namespace"`
	RecordType string `json:"record_type"`
	HitCount   int    `json:"hit_count"`
	Summary    string `json:"summary,omitempty"`
}

// newMCPHandler exposes eng as a single MCP tool over streamable HTTP.
func newMCPHandler(eng *engine.Engine, version string) http.Handler {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{Name: "tradelens", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: TradeSearchTool,
		Description: "Search trade intelligence records (exporters, importers, global trade news). " +
			"Returns the matching records as text and, when enabled, a short summary.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in tradeSearchInput) (*mcp.CallToolResult, tradeSearchOutput, error) {
		ans, err := eng.Answer(ctx, &api.QueryRequest{
			Query:     in.Query,
			Namespace: api.Namespace(in.Namespace),
			TopK:      in.TopK,
			Summarize: in.Summarize,
		})
		if err != nil {
			var apiErr *api.APIError
			if !errors.As(err, &apiErr) {
				return nil, tradeSearchOutput{}, err
			}
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: apiErr.Message}},
			}, tradeSearchOutput{}, nil
		}

		return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: toolText(ans)}},
			}, tradeSearchOutput{
				AnswerID:   ans.ID,
				Namespace:  string(ans.Namespace),
				RecordType: string(ans.RecordType),
				HitCount:   len(ans.Hits),
				Summary:    ans.Summary,
			}, nil
	})

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

// toolText is the plain-text tool result: summary first when present,
// then the record listing.
func toolText(ans *api.Answer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Namespace: %s\n", ans.Namespace)
	if ans.Summary != "" {
		b.WriteString("\nSummary:\n")
		b.WriteString(ans.Summary)
		b.WriteString("\n")
	} else if ans.SummaryError != "" {
		fmt.Fprintf(&b, "\nSummary unavailable: %s\n", ans.SummaryError)
	}
	b.WriteString(ans.Text)
	return b.String()
}
