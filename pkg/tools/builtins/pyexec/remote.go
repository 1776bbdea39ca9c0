package pyexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SandboxAcquirer yields the base URL of a sandbox server for one
// execution. Implementations exist for a static URL (development mode)
// and for SandboxClaim-managed pods (the kubernetes subpackage). The
// release function must be called after execution to clean up.
type SandboxAcquirer interface {
	Acquire(ctx context.Context) (sandboxURL string, release func(), err error)
}

// StaticAcquirer always returns the same sandbox URL.
type StaticAcquirer string

// Acquire returns the fixed URL with a no-op release.
func (a StaticAcquirer) Acquire(context.Context) (string, func(), error) {
	return string(a), func() {}, nil
}

// executeRequest is the body for POST /execute on the sandbox server.
type executeRequest struct {
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// executeGrace pads the per-call HTTP deadline past the script timeout
// so the sandbox gets to report its own timeout result first.
const executeGrace = 30 * time.Second

// RemoteRunner executes snippets on a sandbox server over HTTP,
// acquiring a sandbox per invocation.
type RemoteRunner struct {
	acquirer   SandboxAcquirer
	httpClient *http.Client
}

// Compile-time check that RemoteRunner implements Runner.
var _ Runner = (*RemoteRunner)(nil)

// NewRemoteRunner creates a runner that sends code to sandbox servers
// obtained from the acquirer.
func NewRemoteRunner(acquirer SandboxAcquirer) *RemoteRunner {
	return &RemoteRunner{
		acquirer:   acquirer,
		httpClient: &http.Client{},
	}
}

// Run acquires a sandbox, posts the snippet to its /execute endpoint,
// and decodes the execution outcome. The script timeout is enforced by
// the sandbox; the HTTP deadline only adds a transport bound on top.
func (r *RemoteRunner) Run(ctx context.Context, code string, timeout time.Duration) (*Execution, error) {
	sandboxURL, release, err := r.acquirer.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sandbox: %w", err)
	}
	defer release()

	body, err := json.Marshal(executeRequest{
		Code:           code,
		TimeoutSeconds: int(timeout.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+executeGrace)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sandboxURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.New("sandbox at capacity (HTTP 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sandbox returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result Execution
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
