package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// stubAdapter returns scripted results or an error.
type stubAdapter struct {
	results []SearchResult
	err     error

	gotQuery string
	gotNum   int
}

func (s *stubAdapter) Search(_ context.Context, query string, numResults int) ([]SearchResult, error) {
	s.gotQuery = query
	s.gotNum = numResults
	return s.results, s.err
}

func newStubTool(t *testing.T, adapter SearchAdapter) *Tool {
	t.Helper()
	tool, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tool.adapter = adapter
	return tool
}

func TestSpec(t *testing.T) {
	tool := newStubTool(t, &stubAdapter{})

	spec := tool.Spec()
	if spec.Name != "web_search" {
		t.Errorf("Name = %q, want web_search", spec.Name)
	}

	query, ok := spec.Parameters["query"]
	if !ok || !query.Required || query.Type != tools.TypeString {
		t.Errorf("query spec = %+v, want required string", query)
	}

	num, ok := spec.Parameters["num_results"]
	if !ok {
		t.Fatal("spec missing num_results")
	}
	if num.Type != tools.TypeInteger || num.Required {
		t.Errorf("num_results spec = %+v, want optional integer", num)
	}
	if num.Default != 5 {
		t.Errorf("num_results default = %v, want 5", num.Default)
	}
	if num.Minimum == nil || *num.Minimum != 1 || num.Maximum == nil || *num.Maximum != 10 {
		t.Errorf("num_results bounds = %v..%v, want 1..10", num.Minimum, num.Maximum)
	}
}

func TestExecute(t *testing.T) {
	stub := &stubAdapter{results: []SearchResult{
		{Title: "Go Programming", Link: "https://go.dev", Snippet: "The Go programming language"},
		{Title: "Go Tour", Link: "https://go.dev/tour", Snippet: "A tour of Go"},
	}}
	tool := newStubTool(t, stub)

	result := tool.Execute(context.Background(), map[string]any{"query": "golang"}, nil)
	if !result.Success {
		t.Fatalf("Execute failed: %v", result.Payload)
	}

	payload, ok := result.Payload.(Payload)
	if !ok {
		t.Fatalf("Payload is %T, want Payload", result.Payload)
	}
	if payload.Query != "golang" {
		t.Errorf("payload.Query = %q, want golang", payload.Query)
	}
	if payload.Count != 2 || len(payload.Results) != 2 {
		t.Errorf("payload has %d results (count %d), want 2", len(payload.Results), payload.Count)
	}
	if stub.gotNum != 5 {
		t.Errorf("adapter got numResults = %d, want the default 5", stub.gotNum)
	}

	links := payload.Links()
	if len(links) != 2 || links[0] != "https://go.dev" {
		t.Errorf("Links() = %v, want the result links in order", links)
	}
}

func TestExecute_NumResultsFromJSON(t *testing.T) {
	stub := &stubAdapter{}
	tool := newStubTool(t, stub)

	// Oracle-selected params arrive as decoded JSON, so numbers are float64.
	tool.Execute(context.Background(), map[string]any{"query": "q", "num_results": float64(3)}, nil)
	if stub.gotNum != 3 {
		t.Errorf("adapter got numResults = %d, want 3", stub.gotNum)
	}
}

func TestExecute_EmptyQuery(t *testing.T) {
	tool := newStubTool(t, &stubAdapter{})

	result := tool.Execute(context.Background(), map[string]any{"query": "   "}, nil)
	if result.Success {
		t.Fatal("expected failure for blank query")
	}
	if !strings.Contains(result.Diagnostic(), "must not be empty") {
		t.Errorf("diagnostic = %q, want empty-query message", result.Diagnostic())
	}
}

func TestExecute_AdapterError(t *testing.T) {
	tool := newStubTool(t, &stubAdapter{err: context.DeadlineExceeded})

	result := tool.Execute(context.Background(), map[string]any{"query": "q"}, nil)
	if result.Success {
		t.Fatal("expected failure when the backend errors")
	}
	if !strings.Contains(result.Diagnostic(), "search failed") {
		t.Errorf("diagnostic = %q, want search failure message", result.Diagnostic())
	}
}

// blockingAdapter never returns until its context is cancelled.
type blockingAdapter struct{}

func (blockingAdapter) Search(ctx context.Context, _ string, _ int) ([]SearchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExecute_Timeout(t *testing.T) {
	tool, err := New(Config{Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tool.adapter = blockingAdapter{}

	start := time.Now()
	result := tool.Execute(context.Background(), map[string]any{"query": "q"}, nil)
	if result.Success {
		t.Fatal("expected failure on timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Execute took %v, want the configured timeout to cut it short", elapsed)
	}
}

func TestExecute_EmptyResultsIsSuccess(t *testing.T) {
	tool := newStubTool(t, &stubAdapter{})

	result := tool.Execute(context.Background(), map[string]any{"query": "xyznonexistent"}, nil)
	if !result.Success {
		t.Fatalf("Execute failed: %v", result.Payload)
	}
	payload := result.Payload.(Payload)
	if payload.Count != 0 {
		t.Errorf("Count = %d, want 0", payload.Count)
	}
	if payload.Results == nil {
		t.Error("Results should be an empty slice, not nil")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(Config{Backend: "google"}); err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("New(google) err = %v, want unknown backend error", err)
	}
}

func TestNew_SearXNGRequiresURL(t *testing.T) {
	if _, err := New(Config{Backend: "searxng"}); err == nil {
		t.Error("expected error for searxng backend without URL")
	}
}

func TestCollectors(t *testing.T) {
	tool := newStubTool(t, &stubAdapter{})
	if got := len(tool.Collectors()); got != 2 {
		t.Errorf("Collectors() returned %d collectors, want 2", got)
	}
}

func TestSerpAPI_Search(t *testing.T) {
	var gotQuery, gotEngine, gotNum, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = q.Get("q")
		gotEngine = q.Get("engine")
		gotNum = q.Get("num")
		gotKey = q.Get("api_key")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"organic_results": []map[string]string{
				{"title": "Result 1", "link": "https://example.com/1", "snippet": "first"},
				{"title": "Result 2", "link": "https://example.com/2", "snippet": "second"},
				{"title": "Result 3", "link": "https://example.com/3", "snippet": "third"},
			},
		})
	}))
	defer server.Close()

	adapter := NewSerpAPI("test-key")
	adapter.BaseURL = server.URL

	results, err := adapter.Search(context.Background(), "golang testing", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotEngine != "google" {
		t.Errorf("engine = %q, want google", gotEngine)
	}
	if gotQuery != "golang testing" {
		t.Errorf("q = %q, want the query", gotQuery)
	}
	if gotNum != "2" {
		t.Errorf("num = %q, want 2", gotNum)
	}
	if gotKey != "test-key" {
		t.Errorf("api_key = %q, want test-key", gotKey)
	}

	// Truncated to the requested count.
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Result 1" || results[0].Link != "https://example.com/1" || results[0].Snippet != "first" {
		t.Errorf("results[0] = %+v", results[0])
	}
}

func TestSerpAPI_MissingKey(t *testing.T) {
	adapter := NewSerpAPI("")

	if _, err := adapter.Search(context.Background(), "q", 5); err == nil {
		t.Error("expected error without an API key")
	}
}

func TestSerpAPI_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewSerpAPI("bad-key")
	adapter.BaseURL = server.URL

	_, err := adapter.Search(context.Background(), "q", 5)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want the status code included", err)
	}
}

func TestSearXNG_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q, want json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searxngResponse{Results: []searxngResult{
			{Title: "<b>Bold Title</b>", URL: "https://example.com", Content: "Some <em>emphasized</em> text"},
			{Title: "Plain", URL: "https://example.org", Content: "plain content"},
		}})
	}))
	defer server.Close()

	adapter := NewSearXNG(server.URL)

	results, err := adapter.Search(context.Background(), "html test", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Bold Title" {
		t.Errorf("Title = %q, want HTML stripped", results[0].Title)
	}
	if results[0].Snippet != "Some emphasized text" {
		t.Errorf("Snippet = %q, want HTML stripped", results[0].Snippet)
	}
	if results[0].Link != "https://example.com" {
		t.Errorf("Link = %q", results[0].Link)
	}
}

func TestSearXNG_Truncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rs []searxngResult
		for i := 0; i < 10; i++ {
			rs = append(rs, searxngResult{Title: "t", URL: "https://example.com", Content: "c"})
		}
		json.NewEncoder(w).Encode(searxngResponse{Results: rs})
	}))
	defer server.Close()

	adapter := NewSearXNG(server.URL)

	results, err := adapter.Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}

func TestSearXNG_BackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewSearXNG(server.URL)

	if _, err := adapter.Search(context.Background(), "q", 5); err == nil {
		t.Error("expected error for 500 response")
	}
}
