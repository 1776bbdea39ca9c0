// Package pyexec implements the code_execute capability: Python snippets
// pass a static security scan and then run in an isolated per-invocation
// worker. Completed runs are successful results whose payload carries
// {stdout, stderr, execution_time} plus error and traceback when the
// snippet raised or timed out; only scan rejections and worker
// infrastructure failures produce failed results.
package pyexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/observability"
	"github.com/werkbank-dev/werkbank/pkg/tools"
)

const toolName = "code_execute"

const (
	defaultTimeoutSeconds = 10
	minTimeoutSeconds     = 1
	maxTimeoutSeconds     = 60
)

// Config selects the execution mode and tunes the security lists.
type Config struct {
	// Mode is "local" (default) or "url". The kubernetes mode is wired
	// through NewWithRunner since it needs a cluster client.
	Mode string

	// PythonBin is the interpreter for the local runner. Empty selects
	// "python3".
	PythonBin string

	// SandboxURL is the sandbox server base URL, required for url mode.
	SandboxURL string

	// AllowedModules and BlockedModules override the default security
	// lists when non-empty.
	AllowedModules []string
	BlockedModules []string
}

// Tool implements the code_execute capability.
type Tool struct {
	runner  Runner
	blocked []string
}

// Compile-time check that Tool implements the capability contract.
var _ tools.Capability = (*Tool)(nil)

// New creates the code_execute capability for the local or url mode.
func New(cfg Config) (*Tool, error) {
	var runner Runner
	switch cfg.Mode {
	case "", "local":
		runner = NewLocalRunner(cfg.PythonBin, cfg.AllowedModules, cfg.BlockedModules)
	case "url":
		if cfg.SandboxURL == "" {
			return nil, errors.New("code_execute: url mode requires a sandbox URL")
		}
		runner = NewRemoteRunner(StaticAcquirer(cfg.SandboxURL))
	default:
		return nil, fmt.Errorf("code_execute: unknown mode %q", cfg.Mode)
	}
	return NewWithRunner(cfg, runner), nil
}

// NewWithRunner creates the capability on an explicit runner. The static
// security scan still applies before any code reaches the runner.
func NewWithRunner(cfg Config, runner Runner) *Tool {
	blocked := cfg.BlockedModules
	if len(blocked) == 0 {
		blocked = DefaultBlockedModules
	}
	return &Tool{runner: runner, blocked: blocked}
}

// Spec returns the capability declaration.
func (t *Tool) Spec() tools.CapabilitySpec {
	minT, maxT := float64(minTimeoutSeconds), float64(maxTimeoutSeconds)
	return tools.CapabilitySpec{
		Name:        toolName,
		Description: "Executes python code and returns the results",
		Parameters: map[string]tools.ParameterSpec{
			"code": {
				Type:        tools.TypeString,
				Description: "Python code to execute",
				Required:    true,
			},
			"timeout": {
				Type:        tools.TypeInteger,
				Description: "Maximum execution time in seconds",
				Default:     defaultTimeoutSeconds,
				Minimum:     &minT,
				Maximum:     &maxT,
			},
		},
	}
}

// Execute scans the snippet, runs it through the configured runner, and
// returns the collected output. Scan findings reject the invocation
// outright: nothing executes and the result carries no stdout/stderr.
func (t *Tool) Execute(ctx context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
	code := tools.StringParam(params, "code")
	timeout := tools.IntParam(params, "timeout", defaultTimeoutSeconds)

	if issues := scanCode(code, t.blocked); len(issues) > 0 {
		observability.SandboxExecutionsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("code execution rejected",
			"tool", toolName,
			"issues", len(issues),
		)
		return tools.Fail(toolName, "Security error: "+strings.Join(issues, ", "))
	}

	result, err := t.runner.Run(ctx, code, time.Duration(timeout)*time.Second)
	if err != nil {
		observability.SandboxExecutionsTotal.WithLabelValues("error").Inc()
		slog.Warn("code execution failed",
			"tool", toolName,
			"error", err,
		)
		return tools.FailErr(toolName, err)
	}

	observability.SandboxExecutionsTotal.WithLabelValues(outcomeStatus(result)).Inc()
	return tools.OK(toolName, result)
}

// outcomeStatus classifies a completed execution for metrics.
func outcomeStatus(result *Execution) string {
	switch {
	case result.Error == "":
		return "ok"
	case result.TimedOut():
		return "timeout"
	default:
		return "error"
	}
}
