// Command mock-backend runs a deterministic Chat Completions server
// standing in for the reasoning service during development and
// integration testing. JSON-mode requests are answered with a tool
// selection derived from keywords in the query; plain requests get a
// canned synthesized answer.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handler ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	var resp chatResponse
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		resp = selectionResponse(&req)
	} else {
		resp = synthesisResponse()
	}

	resp.Model = req.Model
	if resp.Model == "" {
		resp.Model = "mock-model"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// selectionResponse plays the decision oracle: a JSON tool selection
// derived from keywords in the query.
func selectionResponse(req *chatRequest) chatResponse {
	query := userQuery(req)
	lower := strings.ToLower(query)

	type selection struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	}
	var selected []selection

	switch {
	case strings.Contains(lower, "calculate"), strings.Contains(lower, "compute"):
		selected = append(selected, selection{
			Name:   "code_execute",
			Params: map[string]any{"code": "print(6 * 7)"},
		})
	case strings.Contains(lower, "search"), strings.Contains(lower, "find"),
		strings.Contains(lower, "report"), strings.Contains(lower, "latest"):
		selected = append(selected, selection{
			Name:   "web_search",
			Params: map[string]any{"query": query},
		})
	}

	body, _ := json.Marshal(map[string]any{
		"tools":     selected,
		"reasoning": "Selected based on keywords in the query.",
	})

	return makeTextResponse("chatcmpl-mock-select", string(body))
}

// synthesisResponse plays the response synthesizer.
func synthesisResponse() chatResponse {
	return makeTextResponse("chatcmpl-mock-synth",
		"Based on what I found, here is a concise summary of the answer to your question.")
}

func userQuery(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		content := req.Messages[i].Content
		// The oracle prompt embeds the query as its first line.
		if rest, ok := strings.CutPrefix(content, "Query: "); ok {
			if idx := strings.Index(rest, "\n"); idx >= 0 {
				return rest[:idx]
			}
			return rest
		}
		return content
	}
	return ""
}

func makeTextResponse(id, text string) chatResponse {
	return chatResponse{
		ID:     id,
		Object: "chat.completion",
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMsg{Role: "assistant", Content: text},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{PromptTokens: 25, CompletionTokens: 12, TotalTokens: 37},
	}
}
