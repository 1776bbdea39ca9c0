// Package jwt provides a shared-secret JWT authenticator. Tokens are
// HMAC-signed (HS256) with the service's configured secret key and carry
// an enforced expiry; there is no key distribution or JWKS involved.
package jwt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/werkbank-dev/werkbank/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the shared HMAC signing key (required).
	Secret string

	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// UserClaim is the claim used as the identity subject. Default: "sub".
	UserClaim string

	// TenantClaim is the claim used for the tenant_id metadata.
	// Default: "tenant_id".
	TenantClaim string

	// TierClaim is the claim used for the service tier. Default: "tier".
	TierClaim string

	// ScopesClaim is the claim used for authorization scopes. The value
	// can be a space-separated string or a JSON array. Default: "scope".
	ScopesClaim string
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// Authenticator validates HS256 bearer tokens against the shared secret.
type Authenticator struct {
	config Config
	secret []byte
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt: secret is required")
	}
	cfg.applyDefaults()
	return &Authenticator{
		config: cfg,
		secret: []byte(cfg.Secret),
	}, nil
}

// Authenticate extracts a bearer token from the Authorization header,
// validates it as an HS256 JWT, and returns an identity on success.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, wrong issuer, bad
//     signature, missing expiry)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return auth.Result{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("empty bearer token")}
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithExpirationRequired(),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}

	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return auth.Result{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid token: %w", err),
		}
	}

	identity, err := a.identityFromClaims(claims)
	if err != nil {
		return auth.Result{Decision: auth.No, Err: err}
	}

	return auth.Result{Decision: auth.Yes, Identity: identity}
}

// identityFromClaims builds the caller identity from validated claims.
func (a *Authenticator) identityFromClaims(claims jwtlib.MapClaims) (*auth.Identity, error) {
	subject, _ := claims[a.config.UserClaim].(string)
	if subject == "" {
		return nil, fmt.Errorf("token missing %q claim", a.config.UserClaim)
	}

	identity := &auth.Identity{Subject: subject}

	if tier, ok := claims[a.config.TierClaim].(string); ok {
		identity.ServiceTier = tier
	}

	if tenant, ok := claims[a.config.TenantClaim].(string); ok && tenant != "" {
		identity.Metadata = map[string]string{"tenant_id": tenant}
	}

	identity.Scopes = parseScopes(claims[a.config.ScopesClaim])

	return identity, nil
}

// parseScopes accepts either a space-separated string ("read write") or a
// JSON array (["read", "write"]).
func parseScopes(v any) []string {
	switch scopes := v.(type) {
	case string:
		if scopes == "" {
			return nil
		}
		return strings.Fields(scopes)
	case []any:
		out := make([]string, 0, len(scopes))
		for _, s := range scopes {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

// TokenOptions describes the claims for an issued token.
type TokenOptions struct {
	Subject     string
	TenantID    string
	ServiceTier string
	Scopes      []string
	TTL         time.Duration
}

// Issue creates a signed HS256 token for the given caller. Used by
// operators to mint access tokens and by tests.
func (a *Authenticator) Issue(opts TokenOptions) (string, error) {
	if opts.Subject == "" {
		return "", fmt.Errorf("jwt: subject is required")
	}
	if opts.TTL <= 0 {
		return "", fmt.Errorf("jwt: TTL must be positive")
	}

	now := time.Now()
	claims := jwtlib.MapClaims{
		a.config.UserClaim: opts.Subject,
		"iat":              now.Unix(),
		"exp":              now.Add(opts.TTL).Unix(),
	}
	if a.config.Issuer != "" {
		claims["iss"] = a.config.Issuer
	}
	if opts.TenantID != "" {
		claims[a.config.TenantClaim] = opts.TenantID
	}
	if opts.ServiceTier != "" {
		claims[a.config.TierClaim] = opts.ServiceTier
	}
	if len(opts.Scopes) > 0 {
		claims[a.config.ScopesClaim] = strings.Join(opts.Scopes, " ")
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
