package auth

import (
	"context"
	"net/http"
	"testing"
)

// mockAuthn is a test authenticator with a fixed vote.
type mockAuthn struct {
	result Result
}

func (m *mockAuthn) Authenticate(_ context.Context, _ *http.Request) Result {
	return m.result
}

func TestChain_FirstYesStops(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "alice"}}},
			&mockAuthn{result: Result{Decision: No, Err: ErrUnauthenticated}},
		},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != Yes {
		t.Errorf("Decision = %d, want Yes", result.Decision)
	}
	if result.Identity.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "alice")
	}
}

func TestChain_FirstNoStops(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: No, Err: ErrUnauthenticated}},
			&mockAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "bob"}}},
		},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != No {
		t.Errorf("Decision = %d, want No", result.Decision)
	}
}

func TestChain_AllAbstain_DefaultReject(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: Abstain}},
			&mockAuthn{result: Result{Decision: Abstain}},
		},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != No {
		t.Errorf("Decision = %d, want No (default reject)", result.Decision)
	}
}

func TestChain_AllAbstain_DefaultAccept(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: Abstain}},
		},
		DefaultDecision: Yes,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != Yes {
		t.Errorf("Decision = %d, want Yes (default accept)", result.Decision)
	}
	if result.Identity.Subject != "anonymous" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "anonymous")
	}
}

func TestChain_Empty_DefaultReject(t *testing.T) {
	chain := &Chain{DefaultDecision: No}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != No {
		t.Errorf("Decision = %d, want No (empty chain)", result.Decision)
	}
}

func TestChain_AbstainThenYes(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: Abstain}},
			&mockAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "jwt-user"}}},
		},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != Yes {
		t.Errorf("Decision = %d, want Yes", result.Decision)
	}
	if result.Identity.Subject != "jwt-user" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "jwt-user")
	}
}

func TestIdentity_TenantID(t *testing.T) {
	id := &Identity{Subject: "alice", Metadata: map[string]string{"tenant_id": "org-1"}}
	if id.TenantID() != "org-1" {
		t.Errorf("TenantID = %q, want %q", id.TenantID(), "org-1")
	}

	// No metadata.
	id2 := &Identity{Subject: "bob"}
	if id2.TenantID() != "" {
		t.Errorf("TenantID = %q, want empty", id2.TenantID())
	}

	// Nil identity.
	var id3 *Identity
	if id3.TenantID() != "" {
		t.Errorf("TenantID on nil = %q, want empty", id3.TenantID())
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	if IdentityFromContext(ctx) != nil {
		t.Error("expected nil identity from empty context")
	}

	id := &Identity{Subject: "alice"}
	ctx = SetIdentity(ctx, id)
	got := IdentityFromContext(ctx)
	if got == nil || got.Subject != "alice" {
		t.Errorf("got %v, want alice", got)
	}
}
