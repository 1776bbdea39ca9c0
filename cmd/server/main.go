// Command server runs the werkbank tool-orchestration service.
//
// Configuration is loaded from a YAML file (-config flag, WERKBANK_CONFIG
// env, ./config.yaml, /etc/werkbank/config.yaml) layered over built-in
// defaults, with environment overrides for secrets and deployment knobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/werkbank-dev/werkbank/pkg/auth"
	"github.com/werkbank-dev/werkbank/pkg/auth/apikey"
	"github.com/werkbank-dev/werkbank/pkg/auth/jwt"
	"github.com/werkbank-dev/werkbank/pkg/config"
	"github.com/werkbank-dev/werkbank/pkg/engine"
	"github.com/werkbank-dev/werkbank/pkg/files"
	"github.com/werkbank-dev/werkbank/pkg/provider/openaicompat"
	"github.com/werkbank-dev/werkbank/pkg/storage"
	"github.com/werkbank-dev/werkbank/pkg/storage/memory"
	"github.com/werkbank-dev/werkbank/pkg/storage/postgres"
	"github.com/werkbank-dev/werkbank/pkg/tools/builtins/dataanalysis"
	"github.com/werkbank-dev/werkbank/pkg/tools/builtins/pdfparser"
	"github.com/werkbank-dev/werkbank/pkg/tools/builtins/pyexec"
	"github.com/werkbank-dev/werkbank/pkg/tools/builtins/pyexec/kubernetes"
	"github.com/werkbank-dev/werkbank/pkg/tools/builtins/websearch"
	"github.com/werkbank-dev/werkbank/pkg/tools/mcp"
	"github.com/werkbank-dev/werkbank/pkg/tools/registry"
	"github.com/werkbank-dev/werkbank/pkg/transport"
	transporthttp "github.com/werkbank-dev/werkbank/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()

	// Reasoning backend serving both the decision oracle and the
	// response synthesizer.
	prov, err := openaicompat.New(openaicompat.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Model:   cfg.Provider.Model,
		Timeout: cfg.Provider.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	// Conversation store.
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Uploaded-file store.
	uploads, err := files.New(cfg.Files.Dir, cfg.Files.MaxBytes)
	if err != nil {
		return fmt.Errorf("creating file store: %w", err)
	}

	// Capability registry with the built-in tools.
	reg := registry.New()
	if err := registerBuiltins(reg, cfg); err != nil {
		return err
	}

	// External MCP servers contribute additional capabilities. A bad
	// entry is skipped, never fatal.
	mcpSource := mcp.Connect(ctx, mcpConfig(cfg.MCP), reg)
	defer mcpSource.Close()

	slog.Info("registry assembled", "tools", reg.Names())

	eng, err := engine.New(prov, reg, store, engine.Config{
		OracleTemperature:      cfg.Engine.Oracle.Temperature,
		SynthesizerTemperature: cfg.Engine.Synthesizer.Temperature,
		MaxSelections:          cfg.Engine.Oracle.MaxSelections,
		SearchTool:             cfg.Engine.SearchTool,
		ExtractionTool:         cfg.Engine.ExtractionTool,
		DocumentExtensions:     cfg.Engine.DocumentExtensions,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	authMw, err := buildAuthMiddleware(cfg)
	if err != nil {
		return err
	}

	srv := transporthttp.NewServer(eng, store, uploads,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithMaxUploadSize(cfg.Files.MaxBytes),
		transporthttp.WithMiddleware(authMw),
	)

	return srv.ListenAndServe()
}

// buildStore creates the conversation store selected by the config.
func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "", "memory":
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// registerBuiltins adds the four built-in capabilities to the registry.
func registerBuiltins(reg *registry.Registry, cfg *config.Config) error {
	search, err := websearch.New(websearch.Config{
		Backend:    cfg.Tools.WebSearch.Provider,
		APIKey:     cfg.Tools.WebSearch.APIKey,
		SearXNGURL: cfg.Tools.WebSearch.SearXNGURL,
		NumResults: cfg.Tools.WebSearch.MaxResults,
		Timeout:    cfg.Tools.WebSearch.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating web_search: %w", err)
	}
	reg.Register(search)

	reg.Register(pdfparser.New(pdfparser.Config{
		MaxPages:         cfg.Tools.PDFParser.MaxPages,
		MaxDownloadBytes: cfg.Tools.PDFParser.MaxDownloadBytes,
	}))

	reg.Register(dataanalysis.New(dataanalysis.Config{
		MaxRows: cfg.Tools.DataAnalysis.MaxRows,
	}))

	executor, err := buildCodeExecutor(cfg)
	if err != nil {
		return err
	}
	reg.Register(executor)

	return nil
}

// buildCodeExecutor creates the code_execute capability in the configured
// execution mode.
func buildCodeExecutor(cfg *config.Config) (*pyexec.Tool, error) {
	ce := cfg.Tools.CodeExecute

	pyCfg := pyexec.Config{
		Mode:           ce.Mode,
		PythonBin:      ce.PythonBin,
		SandboxURL:     ce.SandboxURL,
		AllowedModules: ce.AllowedModules,
		BlockedModules: ce.BlockedModules,
	}

	if ce.Mode != "kubernetes" {
		tool, err := pyexec.New(pyCfg)
		if err != nil {
			return nil, fmt.Errorf("creating code_execute: %w", err)
		}
		return tool, nil
	}

	scheme, err := kubernetes.NewScheme()
	if err != nil {
		return nil, fmt.Errorf("creating sandbox scheme: %w", err)
	}
	restCfg, err := ctrlconfig.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	k8sClient, err := client.New(restCfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}

	acquirer := kubernetes.NewClaimAcquirer(
		k8sClient,
		ce.Kubernetes.Template,
		ce.Kubernetes.Namespace,
		ce.Kubernetes.Port,
		ce.Kubernetes.ReadyTimeout,
	)
	return pyexec.NewWithRunner(pyCfg, pyexec.NewRemoteRunner(acquirer)), nil
}

// buildAuthMiddleware assembles the auth chain and rate limiter from the
// config. Type "none" runs an empty chain whose default decision admits
// every caller as anonymous.
func buildAuthMiddleware(cfg *config.Config) (transport.Middleware, error) {
	chain := &auth.Chain{}

	switch cfg.Auth.Type {
	case "", "none":
		chain.DefaultDecision = auth.Yes
	case "apikey":
		entries := make([]apikey.Entry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.Entry{
				Key:         k.Key,
				Subject:     k.Subject,
				TenantID:    k.TenantID,
				ServiceTier: k.ServiceTier,
			})
		}
		chain.Authenticators = append(chain.Authenticators, apikey.New(entries))
		chain.DefaultDecision = auth.No
	case "jwt":
		authn, err := jwt.New(jwt.Config{
			Secret: cfg.Auth.JWT.Secret,
			Issuer: cfg.Auth.JWT.Issuer,
		})
		if err != nil {
			return nil, fmt.Errorf("creating jwt authenticator: %w", err)
		}
		chain.Authenticators = append(chain.Authenticators, authn)
		chain.DefaultDecision = auth.No
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
	}

	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.DefaultRPM > 0 || len(cfg.Auth.RateLimit.Tiers) > 0 {
		limiter = auth.NewInProcessLimiter(cfg.Auth.RateLimit.Tiers, cfg.Auth.RateLimit.DefaultRPM)
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}

// mcpConfig converts the loaded MCP settings into the mcp package's
// config shape.
func mcpConfig(cfg config.MCPConfig) mcp.Config {
	out := mcp.Config{}
	for _, s := range cfg.Servers {
		out.Servers = append(out.Servers, mcp.ServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			URL:       s.URL,
			Headers:   s.Headers,
			Auth: mcp.AuthConfig{
				Type:         s.Auth.Type,
				TokenURL:     s.Auth.TokenURL,
				ClientID:     s.Auth.ClientID,
				ClientSecret: s.Auth.ClientSecret,
				Scopes:       s.Auth.Scopes,
			},
		})
	}
	return out
}
