// Package websearch implements the web_search capability on pluggable
// search backends (SerpAPI, SearXNG). Search results feed the pipeline's
// conditional document-extraction chaining through the payload's links.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/werkbank-dev/werkbank/pkg/tools"
)

const toolName = "web_search"

const (
	defaultNumResults = 5
	defaultTimeout    = 10 * time.Second
)

// Config selects and tunes the search backend.
type Config struct {
	// Backend is "serpapi" (default) or "searxng".
	Backend string

	// APIKey authenticates against SerpAPI.
	APIKey string

	// SearXNGURL is the base URL of the SearXNG instance, required for
	// the searxng backend.
	SearXNGURL string

	// NumResults is the default result count when the invocation does
	// not pick one. Zero selects 5.
	NumResults int

	// Timeout bounds each search request. Zero selects 10s.
	Timeout time.Duration
}

// Tool implements the web_search capability.
type Tool struct {
	adapter     SearchAdapter
	backend     string
	numResults  int
	timeout     time.Duration
	queries     *prometheus.CounterVec
	resultCount *prometheus.HistogramVec
}

// Compile-time check that Tool implements the capability contract.
var _ tools.Capability = (*Tool)(nil)

// New creates the web_search capability from the given config.
func New(cfg Config) (*Tool, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "serpapi"
	}

	var adapter SearchAdapter
	switch backend {
	case "serpapi":
		adapter = NewSerpAPI(cfg.APIKey)
	case "searxng":
		if cfg.SearXNGURL == "" {
			return nil, fmt.Errorf("web_search: searxng backend requires a base URL")
		}
		adapter = NewSearXNG(cfg.SearXNGURL)
	default:
		return nil, fmt.Errorf("web_search: unknown backend %q", backend)
	}

	numResults := cfg.NumResults
	if numResults <= 0 {
		numResults = defaultNumResults
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Tool{
		adapter:    adapter,
		backend:    backend,
		numResults: numResults,
		timeout:    timeout,
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "werkbank_websearch_queries_total",
				Help: "Total web search queries",
			},
			[]string{"backend", "status"},
		),
		resultCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "werkbank_websearch_results_returned",
				Help:    "Number of web search results returned",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
			[]string{"backend"},
		),
	}, nil
}

// Spec returns the capability declaration.
func (t *Tool) Spec() tools.CapabilitySpec {
	one, ten := 1.0, 10.0
	return tools.CapabilitySpec{
		Name:        toolName,
		Description: "Searches the web for information",
		Parameters: map[string]tools.ParameterSpec{
			"query": {
				Type:        tools.TypeString,
				Description: "Search query",
				Required:    true,
			},
			"num_results": {
				Type:        tools.TypeInteger,
				Description: "Number of results to return",
				Default:     t.numResults,
				Minimum:     &one,
				Maximum:     &ten,
			},
		},
	}
}

// Execute runs one search and returns the structured result payload.
func (t *Tool) Execute(ctx context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
	query := tools.StringParam(params, "query")
	if strings.TrimSpace(query) == "" {
		return tools.Fail(toolName, "query must not be empty")
	}
	numResults := tools.IntParam(params, "num_results", t.numResults)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	results, err := t.adapter.Search(ctx, query, numResults)
	if err != nil {
		t.queries.WithLabelValues(t.backend, "error").Inc()
		slog.Warn("web search failed",
			"backend", t.backend,
			"error", err,
		)
		return tools.Failf(toolName, "search failed: %v", err)
	}

	t.queries.WithLabelValues(t.backend, "success").Inc()
	t.resultCount.WithLabelValues(t.backend).Observe(float64(len(results)))

	if results == nil {
		results = []SearchResult{}
	}
	return tools.OK(toolName, Payload{
		Query:   query,
		Results: results,
		Count:   len(results),
	})
}

// Collectors returns the capability's Prometheus metrics for registration.
func (t *Tool) Collectors() []prometheus.Collector {
	return []prometheus.Collector{t.queries, t.resultCount}
}
