package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// provider.base_url is required.
	if c.Provider.BaseURL == "" {
		errs = append(errs, fmt.Errorf("provider.base_url is required"))
	}

	// provider.model is required.
	if c.Provider.Model == "" {
		errs = append(errs, fmt.Errorf("provider.model is required"))
	}

	// engine.oracle.max_selections must be positive.
	if c.Engine.Oracle.MaxSelections <= 0 {
		errs = append(errs, fmt.Errorf("engine.oracle.max_selections must be > 0, got %d", c.Engine.Oracle.MaxSelections))
	}

	// Sampling temperatures must be within the provider's accepted range.
	if t := c.Engine.Oracle.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("engine.oracle.temperature must be in [0, 2], got %g", t))
	}
	if t := c.Engine.Synthesizer.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("engine.synthesizer.temperature must be in [0, 2], got %g", t))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	// JWT auth needs its signing secret.
	if c.Auth.Type == "jwt" && c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
	}

	// tools.web_search.provider must be a known value.
	switch c.Tools.WebSearch.Provider {
	case "serpapi", "searxng":
		// valid
	default:
		errs = append(errs, fmt.Errorf("tools.web_search.provider must be \"serpapi\" or \"searxng\", got %q", c.Tools.WebSearch.Provider))
	}
	if c.Tools.WebSearch.Provider == "searxng" && c.Tools.WebSearch.SearXNGURL == "" {
		errs = append(errs, fmt.Errorf("tools.web_search.searxng_url is required when tools.web_search.provider is \"searxng\""))
	}

	// tools.code_execute.mode must be a known value, with its mode-specific
	// requirements satisfied.
	switch c.Tools.CodeExecute.Mode {
	case "local", "url", "kubernetes":
		// valid
	default:
		errs = append(errs, fmt.Errorf("tools.code_execute.mode must be \"local\", \"url\", or \"kubernetes\", got %q", c.Tools.CodeExecute.Mode))
	}
	if c.Tools.CodeExecute.Mode == "url" && c.Tools.CodeExecute.SandboxURL == "" {
		errs = append(errs, fmt.Errorf("tools.code_execute.sandbox_url is required when tools.code_execute.mode is \"url\""))
	}
	if c.Tools.CodeExecute.Mode == "kubernetes" && c.Tools.CodeExecute.Kubernetes.Template == "" {
		errs = append(errs, fmt.Errorf("tools.code_execute.kubernetes.template is required when tools.code_execute.mode is \"kubernetes\""))
	}

	// Bounded tool limits must stay positive.
	if c.Tools.PDFParser.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("tools.pdf_parser.max_pages must be > 0, got %d", c.Tools.PDFParser.MaxPages))
	}
	if c.Tools.DataAnalysis.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("tools.data_analysis.max_rows must be > 0, got %d", c.Tools.DataAnalysis.MaxRows))
	}

	// files.max_bytes must be positive.
	if c.Files.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("files.max_bytes must be > 0, got %d", c.Files.MaxBytes))
	}

	// mcp.servers entries need a name and URL.
	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
	}

	return errors.Join(errs...)
}
