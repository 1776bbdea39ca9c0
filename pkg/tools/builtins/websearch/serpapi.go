package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SerpAPIAdapter implements SearchAdapter against the SerpAPI Google
// search endpoint.
type SerpAPIAdapter struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewSerpAPI creates a SerpAPI adapter with the given key.
func NewSerpAPI(apiKey string) *SerpAPIAdapter {
	return &SerpAPIAdapter{
		APIKey:     apiKey,
		BaseURL:    "https://serpapi.com",
		HTTPClient: http.DefaultClient,
	}
}

// serpapiResponse holds the part of the SerpAPI reply we consume.
type serpapiResponse struct {
	OrganicResults []serpapiResult `json:"organic_results"`
}

type serpapiResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Search queries SerpAPI and returns up to numResults organic results.
func (s *SerpAPIAdapter) Search(ctx context.Context, query string, numResults int) ([]SearchResult, error) {
	if s.APIKey == "" {
		return nil, errors.New("no SerpAPI key configured")
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(numResults))
	params.Set("api_key", s.APIKey)

	searchURL := strings.TrimRight(s.BaseURL, "/") + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr serpapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]SearchResult, 0, min(len(sr.OrganicResults), numResults))
	for i, r := range sr.OrganicResults {
		if i >= numResults {
			break
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
		})
	}

	return results, nil
}
