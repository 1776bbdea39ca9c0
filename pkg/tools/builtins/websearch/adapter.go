package websearch

import "context"

// SearchResult holds a single search result.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchAdapter is the interface for pluggable search backends.
type SearchAdapter interface {
	Search(ctx context.Context, query string, numResults int) ([]SearchResult, error)
}

// Payload is the structured output of one search invocation.
type Payload struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// Links exposes the result links so the pipeline can chain document
// extraction on them.
func (p Payload) Links() []string {
	links := make([]string, len(p.Results))
	for i, r := range p.Results {
		links[i] = r.Link
	}
	return links
}
