// Package config provides unified configuration for the werkbank service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (WERKBANK_ prefix plus the legacy
//     OPENAI_API_KEY / WEB_SEARCH_API_KEY names)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the werkbank service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Provider      ProviderConfig      `yaml:"provider"`
	Engine        EngineConfig        `yaml:"engine"`
	Tools         ToolsConfig         `yaml:"tools"`
	MCP           MCPConfig           `yaml:"mcp"`
	Storage       StorageConfig       `yaml:"storage"`
	Files         FilesConfig         `yaml:"files"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8000
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// ProviderConfig holds the reasoning service connection settings. Both the
// decision oracle and the response synthesizer speak to this endpoint.
type ProviderConfig struct {
	BaseURL    string        `yaml:"base_url"`     // default: "https://api.openai.com"
	APIKey     string        `yaml:"api_key"`      // optional; OPENAI_API_KEY overrides
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`        // default: "gpt-4o-mini"
	Timeout    time.Duration `yaml:"timeout"`      // default: 60s
}

// EngineConfig holds pipeline orchestration settings.
type EngineConfig struct {
	Oracle      OracleConfig      `yaml:"oracle"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`

	// SearchTool names the capability whose results are scanned for
	// document links, and which serves as the oracle fallback selection.
	SearchTool string `yaml:"search_tool"` // default: "web_search"

	// ExtractionTool names the capability chained onto matching links.
	ExtractionTool string `yaml:"extraction_tool"` // default: "pdf_parser"

	// DocumentExtensions lists the lowercase link suffixes that trigger
	// the chained extraction.
	DocumentExtensions []string `yaml:"document_extensions"` // default: [".pdf"]
}

// OracleConfig controls the tool-selection stage.
type OracleConfig struct {
	Temperature   float64 `yaml:"temperature"`    // default: 0.2
	MaxSelections int     `yaml:"max_selections"` // default: 10
}

// SynthesizerConfig controls the answer-synthesis stage.
type SynthesizerConfig struct {
	Temperature float64 `yaml:"temperature"` // default: 0.7
}

// ToolsConfig holds per-capability settings for the built-in tools.
type ToolsConfig struct {
	WebSearch    WebSearchConfig    `yaml:"web_search"`
	PDFParser    PDFParserConfig    `yaml:"pdf_parser"`
	DataAnalysis DataAnalysisConfig `yaml:"data_analysis"`
	CodeExecute  CodeExecuteConfig  `yaml:"code_execute"`
}

// WebSearchConfig holds web search settings.
type WebSearchConfig struct {
	Provider   string        `yaml:"provider"`     // "serpapi" or "searxng", default: "serpapi"
	APIKey     string        `yaml:"api_key"`      // WEB_SEARCH_API_KEY overrides
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	SearXNGURL string        `yaml:"searxng_url"`  // required for provider=searxng
	MaxResults int           `yaml:"max_results"`  // default: 5
	Timeout    time.Duration `yaml:"timeout"`      // default: 10s
}

// PDFParserConfig holds document extraction settings.
type PDFParserConfig struct {
	MaxPages         int   `yaml:"max_pages"`          // default: 50
	MaxDownloadBytes int64 `yaml:"max_download_bytes"` // default: 32 MiB
}

// DataAnalysisConfig holds tabular analysis settings.
type DataAnalysisConfig struct {
	MaxRows int `yaml:"max_rows"` // default: 10000
}

// CodeExecuteConfig holds sandboxed code execution settings. Exactly one
// execution mode is active: "local" runs a python subprocess per call,
// "url" delegates to a sandbox server, "kubernetes" claims a sandbox pod.
type CodeExecuteConfig struct {
	Mode       string `yaml:"mode"`        // "local", "url", or "kubernetes", default: "local"
	PythonBin  string `yaml:"python_bin"`  // default: "python3"
	SandboxURL string `yaml:"sandbox_url"` // required for mode=url

	// AllowedModules / BlockedModules override the built-in security
	// lists when non-empty.
	AllowedModules []string `yaml:"allowed_modules"`
	BlockedModules []string `yaml:"blocked_modules"`

	Kubernetes KubernetesSandboxConfig `yaml:"kubernetes"`
}

// KubernetesSandboxConfig holds settings for the SandboxClaim-based runner.
type KubernetesSandboxConfig struct {
	Namespace    string        `yaml:"namespace"`     // default: "default"
	Template     string        `yaml:"template"`      // SandboxTemplate name, required for mode=kubernetes
	Port         int           `yaml:"port"`          // sandbox service port, default: 8000
	ReadyTimeout time.Duration `yaml:"ready_timeout"` // default: 60s
}

// StorageConfig holds conversation persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// FilesConfig holds uploaded-file store settings.
type FilesConfig struct {
	Dir      string `yaml:"dir"`       // default: "./storage"
	MaxBytes int64  `yaml:"max_bytes"` // default: 50 MiB
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	TenantID    string `yaml:"tenant_id"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds settings for the shared-secret JWT authenticator.
type JWTConfig struct {
	Secret        string `yaml:"secret"`
	SecretFile    string `yaml:"secret_file"` // _file variant for secret
	Issuer        string `yaml:"issuer"`
	ExpiryMinutes int    `yaml:"expiry_minutes"` // default: 1440
}

// RateLimitConfig holds per-tier request rate settings. A zero default
// disables limiting.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm"`
	Tiers      map[string]int `yaml:"tiers"` // tier name -> requests per minute
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth"`
}

// MCPAuthConfig holds OAuth client-credentials settings for an MCP server.
type MCPAuthConfig struct {
	Type             string   `yaml:"type"` // "" (none) or "oauth2"
	TokenURL         string   `yaml:"token_url"`
	ClientID         string   `yaml:"client_id"`
	ClientIDFile     string   `yaml:"client_id_file"` // _file variant for client_id
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file"` // _file variant for client_secret
	Scopes           []string `yaml:"scopes"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Provider: ProviderConfig{
			BaseURL: "https://api.openai.com",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Engine: EngineConfig{
			Oracle: OracleConfig{
				Temperature:   0.2,
				MaxSelections: 10,
			},
			Synthesizer: SynthesizerConfig{
				Temperature: 0.7,
			},
			SearchTool:         "web_search",
			ExtractionTool:     "pdf_parser",
			DocumentExtensions: []string{".pdf"},
		},
		Tools: ToolsConfig{
			WebSearch: WebSearchConfig{
				Provider:   "serpapi",
				MaxResults: 5,
				Timeout:    10 * time.Second,
			},
			PDFParser: PDFParserConfig{
				MaxPages:         50,
				MaxDownloadBytes: 32 << 20,
			},
			DataAnalysis: DataAnalysisConfig{
				MaxRows: 10000,
			},
			CodeExecute: CodeExecuteConfig{
				Mode:      "local",
				PythonBin: "python3",
				Kubernetes: KubernetesSandboxConfig{
					Namespace:    "default",
					Port:         8000,
					ReadyTimeout: 60 * time.Second,
				},
			},
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Files: FilesConfig{
			Dir:      "./storage",
			MaxBytes: 50 << 20,
		},
		Auth: AuthConfig{
			Type: "none",
			JWT: JWTConfig{
				ExpiryMinutes: 1440,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
