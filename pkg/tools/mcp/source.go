package mcp

import (
	"context"
	"log/slog"

	"github.com/werkbank-dev/werkbank/pkg/tools/registry"
)

// Source owns the client connections behind the registered MCP
// capabilities. Close it on shutdown, after the registry.
type Source struct {
	clients []*MCPClient
}

// Connect dials every configured server and registers its tools with the
// registry. A server that cannot be connected or enumerated is logged and
// skipped, so a misconfigured entry never prevents startup.
func Connect(ctx context.Context, cfg Config, reg *registry.Registry) *Source {
	src := &Source{}
	for _, serverCfg := range cfg.Servers {
		client := NewMCPClient(serverCfg)
		if err := client.Connect(ctx); err != nil {
			slog.Warn("skipping MCP server", "server", serverCfg.Name, "error", err)
			continue
		}
		src.attach(ctx, client, reg)
	}
	return src
}

// attach discovers the connected client's tools and registers them. On a
// name conflict with an existing capability the tool is registered under
// "<server>_<tool>"; a conflict on the prefixed name too drops the tool.
func (s *Source) attach(ctx context.Context, client *MCPClient, reg *registry.Registry) {
	discovered, err := client.ListTools(ctx)
	if err != nil {
		slog.Warn("skipping MCP server", "server", client.Name(), "error", err)
		_ = client.Close()
		return
	}

	registered := 0
	for _, tool := range discovered {
		name := tool.Name
		if reg.Has(name) {
			prefixed := client.Name() + "_" + tool.Name
			if reg.Has(prefixed) {
				slog.Warn("dropping MCP tool, prefixed name also taken",
					"server", client.Name(),
					"tool", tool.Name,
				)
				continue
			}
			slog.Warn("MCP tool name conflict, registering under prefixed name",
				"server", client.Name(),
				"tool", tool.Name,
				"registered_as", prefixed,
			)
			name = prefixed
		}

		reg.Register(&capability{
			name:   name,
			remote: tool.Name,
			client: client,
			spec:   specFromTool(name, tool),
		})
		registered++
	}

	s.clients = append(s.clients, client)
	slog.Info("connected MCP server",
		"server", client.Name(),
		"tools", registered,
	)
}

// Close closes all server connections, returning the last error seen.
func (s *Source) Close() error {
	var lastErr error
	for _, client := range s.clients {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", client.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
