package pyexec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/werkbank-dev/werkbank/pkg/observability"
	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// stubRunner records the last run and replies with a scripted outcome.
type stubRunner struct {
	result     *Execution
	err        error
	calls      int
	gotCode    string
	gotTimeout time.Duration
}

func (r *stubRunner) Run(_ context.Context, code string, timeout time.Duration) (*Execution, error) {
	r.calls++
	r.gotCode = code
	r.gotTimeout = timeout
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestSpec(t *testing.T) {
	tool := NewWithRunner(Config{}, &stubRunner{})
	spec := tool.Spec()

	if spec.Name != "code_execute" {
		t.Errorf("name = %q, want code_execute", spec.Name)
	}
	if spec.Description != "Executes python code and returns the results" {
		t.Errorf("description = %q", spec.Description)
	}

	code, ok := spec.Parameters["code"]
	if !ok {
		t.Fatal("missing code parameter")
	}
	if code.Type != tools.TypeString || !code.Required {
		t.Errorf("code = %+v, want required string", code)
	}

	timeout, ok := spec.Parameters["timeout"]
	if !ok {
		t.Fatal("missing timeout parameter")
	}
	if timeout.Type != tools.TypeInteger || timeout.Required {
		t.Errorf("timeout = %+v, want optional integer", timeout)
	}
	if timeout.Default != 10 {
		t.Errorf("timeout default = %v, want 10", timeout.Default)
	}
	if timeout.Minimum == nil || *timeout.Minimum != 1 {
		t.Errorf("timeout minimum = %v, want 1", timeout.Minimum)
	}
	if timeout.Maximum == nil || *timeout.Maximum != 60 {
		t.Errorf("timeout maximum = %v, want 60", timeout.Maximum)
	}
}

func TestExecute_Success(t *testing.T) {
	runner := &stubRunner{result: &Execution{Stdout: "42\n", ExecutionTime: 0.1}}
	tool := NewWithRunner(Config{}, runner)

	result := tool.Execute(context.Background(), map[string]any{"code": "print(6 * 7)"}, nil)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Diagnostic())
	}
	payload, ok := result.Payload.(*Execution)
	if !ok {
		t.Fatalf("payload type = %T, want *Execution", result.Payload)
	}
	if payload.Stdout != "42\n" {
		t.Errorf("stdout = %q, want %q", payload.Stdout, "42\n")
	}
	if runner.gotCode != "print(6 * 7)" {
		t.Errorf("runner code = %q", runner.gotCode)
	}
	if runner.gotTimeout != 10*time.Second {
		t.Errorf("runner timeout = %v, want default 10s", runner.gotTimeout)
	}
}

func TestExecute_TimeoutParamFromJSON(t *testing.T) {
	runner := &stubRunner{result: &Execution{}}
	tool := NewWithRunner(Config{}, runner)

	// JSON numbers decode as float64.
	result := tool.Execute(context.Background(), map[string]any{
		"code":    "pass",
		"timeout": float64(30),
	}, nil)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Diagnostic())
	}
	if runner.gotTimeout != 30*time.Second {
		t.Errorf("runner timeout = %v, want 30s", runner.gotTimeout)
	}
}

func TestExecute_SecurityRejection(t *testing.T) {
	runner := &stubRunner{result: &Execution{Stdout: "should never appear"}}
	tool := NewWithRunner(Config{}, runner)

	rejected := counterValue(t, observability.SandboxExecutionsTotal.WithLabelValues("rejected"))

	result := tool.Execute(context.Background(), map[string]any{
		"code": "import os\nprint(os.getcwd())",
	}, nil)

	if result.Success {
		t.Fatal("expected failed result for blocked code")
	}
	want := "Security error: Blocked module import: os, Blocked attribute access on module: os"
	if result.Diagnostic() != want {
		t.Errorf("diagnostic = %q, want %q", result.Diagnostic(), want)
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times, want 0 for rejected code", runner.calls)
	}
	if _, ok := result.Payload.(*Execution); ok {
		t.Error("rejection payload carries execution output, want diagnostic only")
	}

	if got := counterValue(t, observability.SandboxExecutionsTotal.WithLabelValues("rejected")); got != rejected+1 {
		t.Errorf("rejected counter = %v, want %v", got, rejected+1)
	}
}

func TestExecute_RunnerError(t *testing.T) {
	runner := &stubRunner{err: errors.New("acquire sandbox: connection refused")}
	tool := NewWithRunner(Config{}, runner)

	result := tool.Execute(context.Background(), map[string]any{"code": "print(1)"}, nil)

	if result.Success {
		t.Fatal("expected failed result for runner error")
	}
	if !strings.Contains(result.Diagnostic(), "connection refused") {
		t.Errorf("diagnostic = %q, want runner error text", result.Diagnostic())
	}
}

func TestExecute_PythonErrorIsSuccessfulResult(t *testing.T) {
	runner := &stubRunner{result: &Execution{
		ExecutionTime: 0.02,
		Error:         "division by zero",
		Traceback:     "Traceback (most recent call last):\n  ZeroDivisionError: division by zero",
	}}
	tool := NewWithRunner(Config{}, runner)

	errCount := counterValue(t, observability.SandboxExecutionsTotal.WithLabelValues("error"))

	result := tool.Execute(context.Background(), map[string]any{"code": "1 / 0"}, nil)

	if !result.Success {
		t.Fatalf("expected successful result carrying the python error, got %q", result.Diagnostic())
	}
	payload := result.Payload.(*Execution)
	if payload.Error != "division by zero" {
		t.Errorf("error = %q", payload.Error)
	}
	if payload.Traceback == "" {
		t.Error("expected traceback for python exception")
	}

	if got := counterValue(t, observability.SandboxExecutionsTotal.WithLabelValues("error")); got != errCount+1 {
		t.Errorf("error counter = %v, want %v", got, errCount+1)
	}
}

func TestExecute_TimeoutOutcome(t *testing.T) {
	runner := &stubRunner{result: &Execution{
		ExecutionTime: 10.0,
		Error:         "Execution timed out after 10 seconds",
	}}
	tool := NewWithRunner(Config{}, runner)

	timeouts := counterValue(t, observability.SandboxExecutionsTotal.WithLabelValues("timeout"))

	result := tool.Execute(context.Background(), map[string]any{"code": "while True:\n    pass"}, nil)

	if !result.Success {
		t.Fatalf("expected successful result carrying the timeout, got %q", result.Diagnostic())
	}
	payload := result.Payload.(*Execution)
	if !payload.TimedOut() {
		t.Errorf("TimedOut() = false for %q", payload.Error)
	}
	if payload.Traceback != "" {
		t.Errorf("traceback = %q, want empty for timeout", payload.Traceback)
	}

	if got := counterValue(t, observability.SandboxExecutionsTotal.WithLabelValues("timeout")); got != timeouts+1 {
		t.Errorf("timeout counter = %v, want %v", got, timeouts+1)
	}
}

func TestExecute_CustomBlockedModules(t *testing.T) {
	runner := &stubRunner{result: &Execution{Stdout: "ok\n"}}
	tool := NewWithRunner(Config{BlockedModules: []string{"secrets"}}, runner)

	result := tool.Execute(context.Background(), map[string]any{"code": "import os"}, nil)
	if !result.Success {
		t.Fatalf("os should pass a custom block list without it, got %q", result.Diagnostic())
	}

	result = tool.Execute(context.Background(), map[string]any{"code": "import secrets"}, nil)
	if result.Success {
		t.Fatal("secrets should be rejected by the custom block list")
	}
}

func TestNew_ModeSelection(t *testing.T) {
	tool, err := New(Config{})
	if err != nil {
		t.Fatalf("New(local default): %v", err)
	}
	if _, ok := tool.runner.(*LocalRunner); !ok {
		t.Errorf("default runner type = %T, want *LocalRunner", tool.runner)
	}

	tool, err = New(Config{Mode: "url", SandboxURL: "http://sandbox:8000"})
	if err != nil {
		t.Fatalf("New(url): %v", err)
	}
	if _, ok := tool.runner.(*RemoteRunner); !ok {
		t.Errorf("url runner type = %T, want *RemoteRunner", tool.runner)
	}

	if _, err := New(Config{Mode: "url"}); err == nil {
		t.Error("expected error for url mode without sandbox URL")
	}
	if _, err := New(Config{Mode: "warp"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestOutcomeStatus(t *testing.T) {
	tests := []struct {
		name   string
		result *Execution
		want   string
	}{
		{"clean run", &Execution{Stdout: "hi\n"}, "ok"},
		{"timeout", &Execution{Error: "Execution timed out after 5 seconds"}, "timeout"},
		{"python error", &Execution{Error: "division by zero", Traceback: "..."}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeStatus(tt.result); got != tt.want {
				t.Errorf("outcomeStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}
