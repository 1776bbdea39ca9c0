// Package apikey provides an API key authenticator that validates bearer
// tokens against a static key store using SHA-256 hashing and
// constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/werkbank-dev/werkbank/pkg/auth"
)

// Entry is the configuration format for one API key.
type Entry struct {
	// Key is the plaintext API key. It is hashed on load and not retained.
	Key string

	// Subject identifies the caller. Empty defaults to "api-key-user".
	Subject string

	// TenantID scopes the caller's conversation storage when non-empty.
	TenantID string

	// ServiceTier selects the caller's rate-limit bucket.
	ServiceTier string
}

type keyEntry struct {
	keyHash  [32]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against a static key store.
type Authenticator struct {
	keys []keyEntry
}

// New creates an API key authenticator. Keys are hashed immediately;
// plaintext keys are not stored.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		subject := e.Subject
		if subject == "" {
			subject = "api-key-user"
		}
		id := auth.Identity{
			Subject:     subject,
			ServiceTier: e.ServiceTier,
		}
		if e.TenantID != "" {
			id.Metadata = map[string]string{"tenant_id": e.TenantID}
		}
		a.keys = append(a.keys, keyEntry{
			keyHash:  sha256.Sum256([]byte(e.Key)),
			identity: id,
		})
	}
	return a
}

// Authenticate extracts the bearer token and validates it. Returns Yes if
// the key is known, No if a bearer token is present but unknown, Abstain
// when there is no Authorization header or a non-Bearer scheme.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return auth.Result{Decision: auth.Abstain}
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))

	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.keyHash[:]) == 1 {
			// Copy so callers never share the stored identity.
			id := entry.identity
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
