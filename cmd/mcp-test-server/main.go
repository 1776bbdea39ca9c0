// Command mcp-test-server runs a small MCP server for exercising the
// werkbank MCP integration locally. It exposes "get_time" and "echo"
// tools over streamable HTTP on /mcp; point an mcp.servers entry at it.
//
// Configuration:
//
//	MCP_TEST_PORT - Listen port (default: 8080)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	port := os.Getenv("MCP_TEST_PORT")
	if port == "" {
		port = "8080"
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "werkbank-test-mcp", Version: "1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Current time: %s", time.Now().UTC().Format(time.RFC3339))},
			},
		}, struct{}{}, nil
	})

	type echoInput struct {
		Message string `json:"message" jsonschema_description:"The message to echo back"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input echoInput) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Echo: %s", input.Message)},
			},
		}, struct{}{}, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	slog.Info("MCP test server starting", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
