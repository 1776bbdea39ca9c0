// Package kubernetes provides a SandboxAcquirer that manages sandbox
// pods through agent-sandbox SandboxClaim resources. Each execution gets
// its own claim; the claim is deleted when the execution releases it.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/werkbank-dev/werkbank/pkg/tools/builtins/pyexec"
)

// Compile-time check that ClaimAcquirer implements SandboxAcquirer.
var _ pyexec.SandboxAcquirer = (*ClaimAcquirer)(nil)

// ClaimAcquirer creates a SandboxClaim per acquisition, waits for the
// corresponding Sandbox to become ready, and returns the sandbox service
// URL built from its FQDN and the configured port.
type ClaimAcquirer struct {
	client    client.Client
	template  string
	namespace string
	port      int
	timeout   time.Duration
}

// NewClaimAcquirer creates a ClaimAcquirer for the given SandboxTemplate.
func NewClaimAcquirer(c client.Client, template, namespace string, port int, timeout time.Duration) *ClaimAcquirer {
	return &ClaimAcquirer{
		client:    c,
		template:  template,
		namespace: namespace,
		port:      port,
		timeout:   timeout,
	}
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

// Acquire creates a SandboxClaim and blocks until the Sandbox is ready.
// The release function deletes the claim; it is also deleted when the
// wait fails.
func (a *ClaimAcquirer) Acquire(ctx context.Context) (string, func(), error) {
	claimName := newClaimName()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      claimName,
			Namespace: a.namespace,
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{
				Name: a.template,
			},
		},
	}

	if err := a.client.Create(ctx, claim); err != nil {
		return "", nil, fmt.Errorf("create SandboxClaim %q: %w", claimName, err)
	}

	slog.Debug("created sandbox claim",
		"name", claimName,
		"namespace", a.namespace,
		"template", a.template,
	)

	serviceFQDN, err := a.awaitReady(ctx, claimName)
	if err != nil {
		a.deleteClaim(context.Background(), claimName)
		return "", nil, err
	}

	sandboxURL := fmt.Sprintf("http://%s:%d", serviceFQDN, a.port)
	release := func() {
		a.deleteClaim(context.Background(), claimName)
	}

	slog.Debug("sandbox acquired", "name", claimName, "url", sandboxURL)
	return sandboxURL, release, nil
}

// awaitReady polls the Sandbox resource until its Ready condition is
// true and the service FQDN is populated, or the timeout expires.
func (a *ClaimAcquirer) awaitReady(ctx context.Context, sandboxName string) (string, error) {
	deadline := time.After(a.timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled waiting for Sandbox %q: %w", sandboxName, ctx.Err())
		case <-deadline:
			return "", fmt.Errorf("timeout waiting for Sandbox %q to become ready (waited %s)", sandboxName, a.timeout)
		case <-ticker.C:
			sandbox := &sandboxv1alpha1.Sandbox{}
			key := types.NamespacedName{Name: sandboxName, Namespace: a.namespace}
			if err := a.client.Get(ctx, key, sandbox); err != nil {
				// The controller may not have created the Sandbox yet.
				slog.Debug("waiting for sandbox", "name", sandboxName, "error", err.Error())
				continue
			}

			if !isReady(sandbox) {
				continue
			}
			if sandbox.Status.ServiceFQDN == "" {
				continue
			}
			return sandbox.Status.ServiceFQDN, nil
		}
	}
}

// isReady checks whether the Sandbox has a Ready condition set to true.
func isReady(sandbox *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sandbox.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) && c.Status == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// deleteClaim removes a SandboxClaim. Errors are logged rather than
// returned since this runs from release functions and cleanup paths.
func (a *ClaimAcquirer) deleteClaim(ctx context.Context, name string) {
	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: a.namespace,
		},
	}
	if err := a.client.Delete(ctx, claim); err != nil {
		slog.Warn("failed to delete sandbox claim",
			"name", name,
			"namespace", a.namespace,
			"error", err.Error(),
		)
		return
	}
	slog.Debug("deleted sandbox claim", "name", name, "namespace", a.namespace)
}

// newClaimName creates a unique SandboxClaim name. Replaceable in tests
// for deterministic naming.
var newClaimName = func() string {
	return fmt.Sprintf("werkbank-exec-%d", time.Now().UnixNano())
}
