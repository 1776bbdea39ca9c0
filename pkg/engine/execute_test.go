package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// searchPayload is a typed search result that exposes its links.
type searchPayload struct {
	Query   string        `json:"query"`
	Results []searchEntry `json:"results"`
	Count   int           `json:"count"`
}

type searchEntry struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (p searchPayload) Links() []string {
	out := make([]string, len(p.Results))
	for i, r := range p.Results {
		out[i] = r.Link
	}
	return out
}

// searchCapability returns a fixed set of links for every query.
func searchCapability(name string, links ...string) *mockCapability {
	return newMockCapability(name, map[string]tools.ParameterSpec{
		"query": {Type: tools.TypeString, Required: true},
	}, func(_ context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
		p := searchPayload{Query: params["query"].(string), Count: len(links)}
		for _, l := range links {
			p.Results = append(p.Results, searchEntry{Title: "t", Link: l, Snippet: "s"})
		}
		return tools.OK(name, p)
	})
}

func invocation(tool string, params map[string]any) tools.Invocation {
	if params == nil {
		params = map[string]any{}
	}
	return tools.Invocation{Tool: tool, Params: params}
}

func TestExecuteTools_SequentialWithAccumulatedContext(t *testing.T) {
	first := newMockCapability("first", nil, nil)
	second := newMockCapability("second", nil, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, first, second)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("first", nil),
		invocation("second", nil),
	}, "the query", "")

	if len(steps) != 2 || steps[0].Tool != "first" || steps[1].Tool != "second" {
		t.Fatalf("steps = %v, want [first second]", steps)
	}

	// The second tool saw the first tool's step in its run context.
	if got := second.call(t, 0).steps; got != 1 {
		t.Errorf("second tool saw %d prior steps, want 1", got)
	}
	if got := first.call(t, 0).steps; got != 0 {
		t.Errorf("first tool saw %d prior steps, want 0", got)
	}
}

func TestExecuteTools_FailureContinuesRun(t *testing.T) {
	broken := newMockCapability("broken", nil, func(_ context.Context, _ map[string]any, _ *tools.RunContext) tools.Result {
		return tools.Fail("broken", "upstream returned 503")
	})
	healthy := newMockCapability("healthy", nil, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, broken, healthy)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("broken", nil),
		invocation("healthy", nil),
	}, "q", "")

	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2 (run continues past failures)", len(steps))
	}
	if steps[0].Result.Success {
		t.Error("broken step should be failed")
	}
	if steps[0].Result.Diagnostic() == "" {
		t.Error("failed step must carry a non-empty diagnostic")
	}
	if !steps[1].Result.Success {
		t.Error("healthy step should have run and succeeded")
	}
}

func TestExecuteTools_PanicBecomesFailedStep(t *testing.T) {
	panicky := newMockCapability("panicky", nil, func(_ context.Context, _ map[string]any, _ *tools.RunContext) tools.Result {
		panic("boom")
	})
	after := newMockCapability("after", nil, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, panicky, after)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("panicky", nil),
		invocation("after", nil),
	}, "q", "")

	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if steps[0].Result.Success {
		t.Error("panicking tool must yield a failed step")
	}
	if !strings.Contains(steps[0].Result.Diagnostic(), "panicked") {
		t.Errorf("diagnostic = %q, want it to mention the panic", steps[0].Result.Diagnostic())
	}
}

func TestExecuteTools_ValidationFailureIsFailedStep(t *testing.T) {
	strict := newMockCapability("strict", map[string]tools.ParameterSpec{
		"needed": {Type: tools.TypeString, Required: true},
	}, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, strict)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("strict", map[string]any{"bogus": 1}),
	}, "q", "")

	if len(steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(steps))
	}
	diag := steps[0].Result.Diagnostic()
	if !strings.Contains(diag, "Missing required parameter: needed") {
		t.Errorf("diagnostic %q missing the required-parameter violation", diag)
	}
	if !strings.Contains(diag, "Unknown parameter: bogus") {
		t.Errorf("diagnostic %q missing the unknown-parameter violation", diag)
	}
	// The capability itself never ran.
	if strict.callCount() != 0 {
		t.Errorf("capability ran %d times despite invalid params", strict.callCount())
	}
}

func TestExecuteTools_UnknownToolIsFailedStep(t *testing.T) {
	eng, _ := newTestEngine(t, &mockProvider{})

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("ghost", nil),
	}, "q", "")

	if len(steps) != 1 || steps[0].Result.Success {
		t.Fatalf("steps = %v, want one failed step", steps)
	}
}

func TestExecuteTools_ChainsExtractionViaLinkLister(t *testing.T) {
	search := searchCapability("web_search",
		"https://example.com/page.html",
		"https://example.com/paper.pdf",
		"https://example.com/other.pdf",
	)
	pdf := newMockCapability("pdf_parser", map[string]tools.ParameterSpec{
		"url": {Type: tools.TypeString},
	}, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, search, pdf)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("web_search", map[string]any{"query": "papers"}),
	}, "papers", "")

	if len(steps) != 2 {
		t.Fatalf("got %d steps, want search + chained extraction", len(steps))
	}
	if steps[1].Tool != "pdf_parser" {
		t.Errorf("steps[1].Tool = %q, want pdf_parser", steps[1].Tool)
	}

	// Only the FIRST matching link is extracted, exactly once.
	if pdf.callCount() != 1 {
		t.Fatalf("extraction ran %d times, want 1", pdf.callCount())
	}
	got := pdf.call(t, 0)
	if got.params["url"] != "https://example.com/paper.pdf" {
		t.Errorf("extraction url = %v, want the first PDF link", got.params["url"])
	}
	if got.source != "search_result" {
		t.Errorf("extraction source = %q, want search_result", got.source)
	}
}

func TestExecuteTools_ChainMatchesCaseInsensitively(t *testing.T) {
	search := searchCapability("web_search", "https://example.com/REPORT.PDF")
	pdf := newMockCapability("pdf_parser", map[string]tools.ParameterSpec{
		"url": {Type: tools.TypeString},
	}, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, search, pdf)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("web_search", map[string]any{"query": "report"}),
	}, "report", "")

	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	// The original link casing is preserved in the invocation.
	if got := pdf.call(t, 0).params["url"]; got != "https://example.com/REPORT.PDF" {
		t.Errorf("extraction url = %v, want the original link", got)
	}
}

func TestExecuteTools_NoChainWithoutDocumentLinks(t *testing.T) {
	search := searchCapability("web_search", "https://example.com/a.html", "https://example.com/b")
	pdf := newMockCapability("pdf_parser", nil, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, search, pdf)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("web_search", map[string]any{"query": "q"}),
	}, "q", "")

	if len(steps) != 1 {
		t.Errorf("got %d steps, want 1 (no chain without matching links)", len(steps))
	}
	if pdf.callCount() != 0 {
		t.Errorf("extraction ran %d times, want 0", pdf.callCount())
	}
}

func TestExecuteTools_NoChainWhenExtractorMissing(t *testing.T) {
	search := searchCapability("web_search", "https://example.com/paper.pdf")

	eng, _ := newTestEngine(t, &mockProvider{}, search)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("web_search", map[string]any{"query": "q"}),
	}, "q", "")

	if len(steps) != 1 {
		t.Errorf("got %d steps, want 1 (no extractor registered)", len(steps))
	}
}

func TestExecuteTools_NoChainAfterFailedSearch(t *testing.T) {
	search := newMockCapability("web_search", map[string]tools.ParameterSpec{
		"query": {Type: tools.TypeString, Required: true},
	}, func(_ context.Context, _ map[string]any, _ *tools.RunContext) tools.Result {
		return tools.Fail("web_search", "quota exceeded")
	})
	pdf := newMockCapability("pdf_parser", nil, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, search, pdf)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("web_search", map[string]any{"query": "q"}),
	}, "q", "")

	if len(steps) != 1 {
		t.Errorf("got %d steps, want 1 (failed search never chains)", len(steps))
	}
	if pdf.callCount() != 0 {
		t.Errorf("extraction ran %d times, want 0", pdf.callCount())
	}
}

func TestExecuteTools_EachSearchChainsIndependently(t *testing.T) {
	search := searchCapability("web_search", "https://example.com/doc.pdf")
	pdf := newMockCapability("pdf_parser", map[string]tools.ParameterSpec{
		"url": {Type: tools.TypeString},
	}, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, search, pdf)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("web_search", map[string]any{"query": "one"}),
		invocation("web_search", map[string]any{"query": "two"}),
	}, "q", "")

	want := []string{"web_search", "pdf_parser", "web_search", "pdf_parser"}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i, name := range want {
		if steps[i].Tool != name {
			t.Errorf("steps[%d].Tool = %q, want %q (chained steps follow their triggers)", i, steps[i].Tool, name)
		}
	}
}

func TestExecuteTools_ChainFromMapPayload(t *testing.T) {
	// MCP-backed search tools return decoded JSON maps, not typed payloads.
	search := newMockCapability("web_search", map[string]tools.ParameterSpec{
		"query": {Type: tools.TypeString, Required: true},
	}, func(_ context.Context, _ map[string]any, _ *tools.RunContext) tools.Result {
		return tools.OK("web_search", map[string]any{
			"results": []any{
				map[string]any{"title": "a", "link": "https://example.com/x.pdf"},
			},
		})
	})
	pdf := newMockCapability("pdf_parser", map[string]tools.ParameterSpec{
		"url": {Type: tools.TypeString},
	}, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, search, pdf)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("web_search", map[string]any{"query": "q"}),
	}, "q", "")

	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if got := pdf.call(t, 0).params["url"]; got != "https://example.com/x.pdf" {
		t.Errorf("extraction url = %v, want the map payload's link", got)
	}
}

func TestExecuteTools_CustomExtensions(t *testing.T) {
	search := searchCapability("web_search", "https://example.com/data.docx")
	word := newMockCapability("doc_extract", map[string]tools.ParameterSpec{
		"url": {Type: tools.TypeString},
	}, nil)

	reg := registryWith(search, word)
	eng, err := New(&mockProvider{}, reg, memoryStore(), Config{
		ExtractionTool:     "doc_extract",
		DocumentExtensions: []string{".docx"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("web_search", map[string]any{"query": "q"}),
	}, "q", "")

	if len(steps) != 2 || steps[1].Tool != "doc_extract" {
		t.Fatalf("steps = %v, want chained doc_extract", steps)
	}
}

func TestExecuteTools_InjectsFilePath(t *testing.T) {
	analysis := newMockCapability("data_analysis", map[string]tools.ParameterSpec{
		"file_path": {Type: tools.TypeString},
		"operation": {Type: tools.TypeString, Required: true},
	}, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, analysis)

	steps := eng.executeTools(context.Background(), []tools.Invocation{
		invocation("data_analysis", map[string]any{"operation": "summary"}),
	}, "q", "/uploads/file_abc.csv")

	if len(steps) != 1 || !steps[0].Result.Success {
		t.Fatalf("steps = %v, want one successful step", steps)
	}
	if got := analysis.call(t, 0).params["file_path"]; got != "/uploads/file_abc.csv" {
		t.Errorf("file_path = %v, want the uploaded path injected", got)
	}
}

func TestExecuteTools_FilePathNotInjectedOverExplicitSource(t *testing.T) {
	analysis := newMockCapability("data_analysis", map[string]tools.ParameterSpec{
		"file_path": {Type: tools.TypeString},
		"url":       {Type: tools.TypeString},
		"operation": {Type: tools.TypeString, Required: true},
	}, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, analysis)

	eng.executeTools(context.Background(), []tools.Invocation{
		invocation("data_analysis", map[string]any{"operation": "summary", "url": "https://example.com/d.csv"}),
	}, "q", "/uploads/file_abc.csv")

	if _, ok := analysis.call(t, 0).params["file_path"]; ok {
		t.Error("file_path must not be injected when the oracle chose a url")
	}
}

func TestExecuteTools_FilePathNotInjectedForNonFileTools(t *testing.T) {
	calc := newMockCapability("calculator", map[string]tools.ParameterSpec{
		"expression": {Type: tools.TypeString, Required: true},
	}, nil)

	eng, _ := newTestEngine(t, &mockProvider{}, calc)

	eng.executeTools(context.Background(), []tools.Invocation{
		invocation("calculator", map[string]any{"expression": "1+1"}),
	}, "q", "/uploads/file_abc.csv")

	if _, ok := calc.call(t, 0).params["file_path"]; ok {
		t.Error("file_path must not be injected into tools that do not declare it")
	}
}

func TestFirstDocumentLink(t *testing.T) {
	cases := []struct {
		name  string
		links []string
		exts  []string
		want  string
		found bool
	}{
		{"first pdf wins", []string{"a.html", "b.pdf", "c.pdf"}, []string{".pdf"}, "b.pdf", true},
		{"uppercase suffix", []string{"X.PDF"}, []string{".pdf"}, "X.PDF", true},
		{"no match", []string{"a.html"}, []string{".pdf"}, "", false},
		{"empty links", nil, []string{".pdf"}, "", false},
		{"multiple extensions", []string{"a.txt", "b.docx"}, []string{".pdf", ".docx"}, "b.docx", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := firstDocumentLink(tc.links, tc.exts)
			if got != tc.want || found != tc.found {
				t.Errorf("firstDocumentLink(%v, %v) = (%q, %v), want (%q, %v)",
					tc.links, tc.exts, got, found, tc.want, tc.found)
			}
		})
	}
}
