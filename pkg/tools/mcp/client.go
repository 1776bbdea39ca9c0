package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPClient wraps an MCP SDK client and session for a single server
// connection. It handles the handshake, tool discovery, and call proxying.
type MCPClient struct {
	cfg     ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession
}

// NewMCPClient creates a client for the given server configuration. Call
// Connect to establish the connection.
func NewMCPClient(cfg ServerConfig) *MCPClient {
	return &MCPClient{cfg: cfg}
}

// Name returns the configured server name.
func (c *MCPClient) Name() string {
	return c.cfg.Name
}

// Connect establishes the MCP connection using a transport built from the
// server configuration.
func (c *MCPClient) Connect(ctx context.Context) error {
	transport, err := c.createTransport()
	if err != nil {
		return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
	}
	return c.ConnectWithTransport(ctx, transport)
}

// ConnectWithTransport establishes the MCP connection over the given
// transport. Tests use it to connect through in-memory transports.
func (c *MCPClient) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	c.client = mcp.NewClient(
		&mcp.Implementation{
			Name:    "werkbank",
			Version: "1.0.0",
		},
		&mcp.ClientOptions{
			Capabilities: &mcp.ClientCapabilities{},
		},
	)

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	return nil
}

// createTransport builds the wire transport selected by the configuration.
func (c *MCPClient) createTransport() (mcp.Transport, error) {
	httpClient, err := c.buildHTTPClient()
	if err != nil {
		return nil, err
	}

	switch c.cfg.Transport {
	case "sse":
		transport := &mcp.SSEClientTransport{Endpoint: c.cfg.URL}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	case "streamable-http", "":
		transport := &mcp.StreamableClientTransport{Endpoint: c.cfg.URL}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// buildHTTPClient returns an HTTP client that injects the configured
// static headers and auth headers, or nil when neither is configured.
func (c *MCPClient) buildHTTPClient() (*http.Client, error) {
	var auth AuthProvider

	switch c.cfg.Auth.Type {
	case "":
	case "oauth2":
		if c.cfg.Auth.TokenURL == "" || c.cfg.Auth.ClientID == "" || c.cfg.Auth.ClientSecret == "" {
			return nil, errors.New("oauth2 auth requires token_url, client_id and client_secret")
		}
		auth = NewOAuthClientCredentials(
			c.cfg.Auth.TokenURL,
			c.cfg.Auth.ClientID,
			c.cfg.Auth.ClientSecret,
			c.cfg.Auth.Scopes,
		)
	default:
		return nil, fmt.Errorf("unsupported auth type %q", c.cfg.Auth.Type)
	}

	if len(c.cfg.Headers) == 0 && auth == nil {
		return nil, nil
	}
	return &http.Client{
		Transport: &authAwareTransport{
			base:    http.DefaultTransport,
			headers: c.cfg.Headers,
			auth:    auth,
		},
	}, nil
}

// ListTools enumerates the tools the connected server exposes.
func (c *MCPClient) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var out []*mcp.Tool
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		out = append(out, tool)
	}
	return out, nil
}

// CallTool invokes a tool on the connected server and returns the raw
// protocol result.
func (c *MCPClient) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("calling tool %q on %q: %w", name, c.cfg.Name, err)
	}
	return result, nil
}

// Close closes the MCP session.
func (c *MCPClient) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
