package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision is the outcome of one authenticator's vote.
type Decision int

const (
	// Yes means credentials are valid. The chain stops and the identity
	// is used.
	Yes Decision = iota

	// No means credentials are present but invalid. The chain stops and
	// the request is rejected.
	No

	// Abstain means this authenticator cannot handle the credential type.
	// The chain continues to the next authenticator.
	Abstain
)

// Result carries the outcome of an authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique identifier (required, non-empty).
	Subject string

	// ServiceTier selects the rate-limit bucket.
	ServiceTier string

	// Scopes lists the authorization scopes granted.
	Scopes []string

	// Metadata carries authenticator-specific data. The key "tenant_id"
	// scopes conversation storage.
	Metadata map[string]string
}

// TenantID returns the tenant identifier from metadata, or empty string.
func (id *Identity) TenantID() string {
	if id == nil || id.Metadata == nil {
		return ""
	}
	return id.Metadata["tenant_id"]
}

// Authenticator examines request credentials and returns a three-outcome
// vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain evaluates authenticators in order using three-outcome voting.
type Chain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision applies when all authenticators abstain. Use Yes
	// for development (anonymous access) or No for production.
	DefaultDecision Decision
}

// Authenticate runs the chain, stopping on the first Yes or No. If all
// abstain, the default decision applies.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return Result{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", ServiceTier: "default"},
		}
	}

	return Result{
		Decision: No,
		Err:      ErrUnauthenticated,
	}
}
