package mcp

// Config lists the MCP server connections to establish at startup.
type Config struct {
	Servers []ServerConfig
}

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the logical name for this server. It is used in logs and
	// as the prefix when a discovered tool name collides with an already
	// registered capability.
	Name string

	// Transport selects the wire transport: "sse" or "streamable-http".
	// Empty defaults to "streamable-http".
	Transport string

	// URL is the MCP server endpoint.
	URL string

	// Headers are static HTTP headers sent with every request, typically
	// API keys. Headers produced by Auth take precedence.
	Headers map[string]string

	// Auth configures OAuth client-credentials authentication. A zero
	// value means unauthenticated.
	Auth AuthConfig
}

// AuthConfig holds OAuth 2.0 client-credentials settings for one server.
type AuthConfig struct {
	// Type selects the scheme: "" (none) or "oauth2".
	Type string

	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}
