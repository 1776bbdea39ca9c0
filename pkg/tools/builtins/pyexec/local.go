package pyexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// bootstrap runs inside the worker process. It installs an import hook
// limited to the allow-listed modules, executes the snippet, and writes
// the error/traceback outcome to a result file. Stdout and stderr are
// left alone so the parent process captures them directly.
const bootstrap = `import builtins
import json
import sys
import traceback


def main():
    code_path, config_path, result_path = sys.argv[1:4]

    with open(config_path) as f:
        config = json.load(f)
    allowed = set(config["allowed"])
    blocked = set(config["blocked"])

    with open(code_path) as f:
        code = f.read()

    original_import = builtins.__import__

    def secure_import(name, *args, **kwargs):
        if name in blocked:
            raise ImportError("Import of %s is not allowed" % name)
        if name not in allowed and all(not name.startswith(m + ".") for m in allowed):
            raise ImportError("Module %s is not allowed" % name)
        return original_import(name, *args, **kwargs)

    builtins.__import__ = secure_import

    outcome = {}
    try:
        exec(compile(code, "<code>", "exec"), {"__name__": "__main__"})
    except BaseException as exc:
        outcome["error"] = str(exc)
        outcome["traceback"] = traceback.format_exc()

    with open(result_path, "w") as f:
        json.dump(outcome, f)


main()
`

// LocalRunner executes snippets in a fresh python subprocess per call.
// Each run gets its own scratch directory and its own import hook, so no
// interpreter state is ever shared between invocations. The process is
// killed when the timeout expires.
type LocalRunner struct {
	pythonBin string
	allowed   []string
	blocked   []string
}

// Compile-time check that LocalRunner implements Runner.
var _ Runner = (*LocalRunner)(nil)

// NewLocalRunner creates a subprocess runner. Empty arguments select
// "python3" and the default module lists.
func NewLocalRunner(pythonBin string, allowed, blocked []string) *LocalRunner {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowedModules
	}
	if len(blocked) == 0 {
		blocked = DefaultBlockedModules
	}
	return &LocalRunner{pythonBin: pythonBin, allowed: allowed, blocked: blocked}
}

// Run executes the snippet in a new worker process and collects its
// output. The worker's outcome file carries error and traceback for
// Python exceptions; stdout and stderr are captured from the process
// pipes.
func (r *LocalRunner) Run(ctx context.Context, code string, timeout time.Duration) (*Execution, error) {
	scratch, err := os.MkdirTemp("", "werkbank-pyexec-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	codePath := filepath.Join(scratch, "code.py")
	if err := os.WriteFile(codePath, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("write code: %w", err)
	}

	lists, err := json.Marshal(map[string][]string{"allowed": r.allowed, "blocked": r.blocked})
	if err != nil {
		return nil, fmt.Errorf("marshal module lists: %w", err)
	}
	configPath := filepath.Join(scratch, "config.json")
	if err := os.WriteFile(configPath, lists, 0o600); err != nil {
		return nil, fmt.Errorf("write module lists: %w", err)
	}

	bootstrapPath := filepath.Join(scratch, "bootstrap.py")
	if err := os.WriteFile(bootstrapPath, []byte(bootstrap), 0o600); err != nil {
		return nil, fmt.Errorf("write bootstrap: %w", err)
	}
	resultPath := filepath.Join(scratch, "result.json")

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.pythonBin, bootstrapPath, codePath, configPath, resultPath)
	cmd.Dir = scratch
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + scratch,
		"MPLCONFIGDIR=" + scratch,
		"PYTHONDONTWRITEBYTECODE=1",
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Seconds()

	// A cancelled parent context is the caller abandoning the run, not a
	// script timeout.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &Execution{
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		ExecutionTime: elapsed,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Error = timeoutMessage(timeout)
		return result, nil
	}

	var outcome struct {
		Error     string `json:"error"`
		Traceback string `json:"traceback"`
	}
	raw, readErr := os.ReadFile(resultPath)
	switch {
	case readErr == nil:
		if err := json.Unmarshal(raw, &outcome); err != nil {
			return nil, fmt.Errorf("decode worker outcome: %w", err)
		}
		result.Error = outcome.Error
		result.Traceback = outcome.Traceback
	case runErr != nil:
		// The interpreter died before writing an outcome (missing binary,
		// hard crash).
		return nil, fmt.Errorf("python worker failed: %w (stderr: %s)", runErr, strings.TrimSpace(stderr.String()))
	default:
		return nil, fmt.Errorf("python worker wrote no outcome")
	}

	return result, nil
}
