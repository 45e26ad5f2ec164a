package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

var (
	recordIDPattern = regexp.MustCompile(`<id>([^<]+)</id>`)
	questionPattern = regexp.MustCompile(`(?m)^Question: (.+)$`)
)

// handleChatCompletions returns a markdown summary naming the records the
// prompt carried. Streaming is not offered.
func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}
	if req.Stream {
		http.Error(w, `{"error":{"message":"streaming is not supported by the mock","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	text := summarise(lastUserMessage(req.Messages))
	writeJSON(w, http.StatusOK, chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: chatUsage{PromptTokens: 50, CompletionTokens: 20, TotalTokens: 70},
	})
}

func summarise(prompt string) string {
	ids := recordIDPattern.FindAllStringSubmatch(prompt, -1)
	if len(ids) == 0 {
		return "No records were provided, so there is nothing to summarise."
	}

	var b strings.Builder
	if m := questionPattern.FindStringSubmatch(prompt); m != nil {
		fmt.Fprintf(&b, "**%d records** match _%s_:\n\n", len(ids), strings.TrimSpace(m[1]))
	} else {
		fmt.Fprintf(&b, "**%d records** match:\n\n", len(ids))
	}
	for _, id := range ids {
		fmt.Fprintf(&b, "- `%s`\n", id[1])
	}
	return b.String()
}

func lastUserMessage(msgs []chatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "tradelens-mock"},
		},
	})
}
