package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// AuthProvider supplies authentication headers for MCP server requests.
type AuthProvider interface {
	GetHeaders(ctx context.Context) (map[string]string, error)
}

// OAuthClientCredentials obtains bearer tokens via the OAuth 2.0
// client_credentials grant. Tokens are cached and renewed proactively once
// 80% of their lifetime has elapsed; if renewal fails while the cached
// token is still valid, the cached token keeps being served.
type OAuthClientCredentials struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string

	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	refreshAt   time.Time

	// nowFunc is replaceable in tests.
	nowFunc func() time.Time
}

var _ AuthProvider = (*OAuthClientCredentials)(nil)

// NewOAuthClientCredentials creates a client-credentials provider for the
// given token endpoint.
func NewOAuthClientCredentials(tokenURL, clientID, clientSecret string, scopes []string) *OAuthClientCredentials {
	return &OAuthClientCredentials{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       scopes,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		nowFunc:      time.Now,
	}
}

// GetHeaders returns an Authorization header carrying a valid bearer
// token, acquiring or renewing the token as needed.
func (a *OAuthClientCredentials) GetHeaders(ctx context.Context) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.nowFunc()
	if a.accessToken != "" && now.Before(a.refreshAt) {
		return map[string]string{"Authorization": "Bearer " + a.accessToken}, nil
	}

	token, expiresIn, err := a.fetchToken(ctx)
	if err != nil {
		// A failed renewal is tolerable while the old token is valid.
		if a.accessToken != "" && now.Before(a.expiresAt) {
			return map[string]string{"Authorization": "Bearer " + a.accessToken}, nil
		}
		return nil, fmt.Errorf("acquiring OAuth token: %w", err)
	}

	lifetime := time.Duration(expiresIn) * time.Second
	a.accessToken = token
	a.expiresAt = now.Add(lifetime)
	a.refreshAt = now.Add(lifetime * 8 / 10)

	return map[string]string{"Authorization": "Bearer " + a.accessToken}, nil
}

// tokenResponse is the JSON body returned by an OAuth 2.0 token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (a *OAuthClientCredentials) fetchToken(ctx context.Context) (string, int, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
	}
	if len(a.scopes) > 0 {
		form.Set("scope", strings.Join(a.scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	if tr.ExpiresIn <= 0 {
		// Endpoints that omit expires_in get a conservative default.
		tr.ExpiresIn = 3600
	}
	return tr.AccessToken, tr.ExpiresIn, nil
}

// authAwareTransport injects static headers and auth-provider headers into
// every outgoing request. Auth headers win over static ones.
type authAwareTransport struct {
	base    http.RoundTripper
	headers map[string]string
	auth    AuthProvider
}

func (t *authAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if t.auth != nil {
		authHeaders, err := t.auth.GetHeaders(req.Context())
		if err != nil {
			return nil, fmt.Errorf("getting auth headers: %w", err)
		}
		for k, v := range authHeaders {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
