package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/api"
	"github.com/werkbank-dev/werkbank/pkg/provider"
	"github.com/werkbank-dev/werkbank/pkg/storage/memory"
	"github.com/werkbank-dev/werkbank/pkg/tools"
	"github.com/werkbank-dev/werkbank/pkg/tools/registry"
)

// mockProvider returns scripted replies in order and records every request.
type mockProvider struct {
	mu       sync.Mutex
	requests []provider.Request
	replies  []mockReply
}

type mockReply struct {
	content string
	err     error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(_ context.Context, req *provider.Request) (*provider.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, *req)
	if len(m.replies) == 0 {
		return nil, errors.New("mock provider: no reply scripted")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	if reply.err != nil {
		return nil, reply.err
	}
	return &provider.Response{Content: reply.content, Model: "mock-model"}, nil
}

func (m *mockProvider) Close() error { return nil }

// routeProvider answers by request kind instead of call order: JSON-mode
// requests get the oracle reply, everything else the synthesizer reply.
// Safe under concurrent pipeline runs.
type routeProvider struct {
	oracleContent string
	synthContent  string
}

func (p *routeProvider) Name() string { return "route" }

func (p *routeProvider) Complete(_ context.Context, req *provider.Request) (*provider.Response, error) {
	if req.JSONMode {
		return &provider.Response{Content: p.oracleContent, Model: "mock-model"}, nil
	}
	return &provider.Response{Content: p.synthContent, Model: "mock-model"}, nil
}

func (p *routeProvider) Close() error { return nil }

// mockCapability is a scriptable tools.Capability that records its calls.
type mockCapability struct {
	spec tools.CapabilitySpec
	fn   func(ctx context.Context, params map[string]any, run *tools.RunContext) tools.Result

	mu    sync.Mutex
	calls []capCall
}

type capCall struct {
	params map[string]any
	source string
	steps  int
}

func newMockCapability(name string, params map[string]tools.ParameterSpec, fn func(ctx context.Context, params map[string]any, run *tools.RunContext) tools.Result) *mockCapability {
	if params == nil {
		params = map[string]tools.ParameterSpec{}
	}
	return &mockCapability{
		spec: tools.CapabilitySpec{
			Name:        name,
			Description: "mock capability " + name,
			Parameters:  params,
		},
		fn: fn,
	}
}

func (c *mockCapability) Spec() tools.CapabilitySpec { return c.spec }

func (c *mockCapability) Execute(ctx context.Context, params map[string]any, run *tools.RunContext) tools.Result {
	c.mu.Lock()
	c.calls = append(c.calls, capCall{params: params, source: run.Source, steps: len(run.Steps)})
	c.mu.Unlock()

	if c.fn != nil {
		return c.fn(ctx, params, run)
	}
	return tools.OK(c.spec.Name, map[string]any{"ok": true})
}

func (c *mockCapability) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *mockCapability) call(t *testing.T, i int) capCall {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.calls) {
		t.Fatalf("capability %s has %d calls, wanted index %d", c.spec.Name, len(c.calls), i)
	}
	return c.calls[i]
}

// registryWith builds a registry holding the given capabilities.
func registryWith(caps ...tools.Capability) *registry.Registry {
	reg := registry.New()
	for _, c := range caps {
		reg.Register(c)
	}
	return reg
}

// memoryStore returns a fresh unbounded in-memory store.
func memoryStore() *memory.Store { return memory.New(0) }

// newTestEngine wires an Engine from the given provider and capabilities
// over a fresh in-memory store.
func newTestEngine(t *testing.T, p provider.Provider, caps ...tools.Capability) (*Engine, *memory.Store) {
	t.Helper()

	store := memoryStore()
	eng, err := New(p, registryWith(caps...), store, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return eng, store
}

// selection builds an oracle JSON reply naming the given tools.
func selection(toolJSON ...string) string {
	out := `{"tools": [`
	for i, tj := range toolJSON {
		if i > 0 {
			out += ", "
		}
		out += tj
	}
	return out + `], "reasoning": "scripted"}`
}

func TestNew_NilDependencies(t *testing.T) {
	reg := registry.New()
	store := memory.New(0)
	p := &mockProvider{}

	if _, err := New(nil, reg, store, Config{}); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := New(p, nil, store, Config{}); err == nil {
		t.Error("expected error for nil registry")
	}
	if _, err := New(p, reg, nil, Config{}); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestProcessQuery_FullPipeline(t *testing.T) {
	calc := newMockCapability("calculator", map[string]tools.ParameterSpec{
		"expression": {Type: tools.TypeString, Required: true},
	}, func(_ context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
		return tools.OK("calculator", map[string]any{"value": 4})
	})

	p := &mockProvider{replies: []mockReply{
		{content: selection(`{"name": "calculator", "params": {"expression": "2+2"}}`)},
		{content: "The answer is 4."},
	}}

	eng, store := newTestEngine(t, p, calc)

	result, err := eng.ProcessQuery(context.Background(), Request{Query: "what is 2+2"})
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	if result.ConversationID == "" {
		t.Error("expected a conversation ID to be assigned")
	}
	if result.Query != "what is 2+2" {
		t.Errorf("Query = %q, want %q", result.Query, "what is 2+2")
	}
	if result.Answer != "The answer is 4." {
		t.Errorf("Answer = %q, want %q", result.Answer, "The answer is 4.")
	}
	if len(result.ToolsUsed) != 1 || result.ToolsUsed[0] != "calculator" {
		t.Errorf("ToolsUsed = %v, want [calculator]", result.ToolsUsed)
	}
	res, ok := result.ToolResults["calculator"]
	if !ok {
		t.Fatal("ToolResults missing calculator entry")
	}
	if !res.Success {
		t.Errorf("calculator result not successful: %v", res.Payload)
	}

	// The capability saw the oracle's parameters.
	if got := calc.call(t, 0).params["expression"]; got != "2+2" {
		t.Errorf("expression param = %v, want 2+2", got)
	}

	// History holds the user turn and the assistant turn, in order.
	conv, err := store.GetConversation(context.Background(), result.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Role != api.RoleUser || conv.Messages[0].Content != "what is 2+2" {
		t.Errorf("Messages[0] = %+v, want the user query", conv.Messages[0])
	}
	if conv.Messages[1].Role != api.RoleAssistant || conv.Messages[1].Content != "The answer is 4." {
		t.Errorf("Messages[1] = %+v, want the assistant answer", conv.Messages[1])
	}
}

func TestProcessQuery_ContinuesConversation(t *testing.T) {
	p := &routeProvider{
		oracleContent: `{"tools": [], "reasoning": "none needed"}`,
		synthContent:  "hello again",
	}
	eng, store := newTestEngine(t, p)

	first, err := eng.ProcessQuery(context.Background(), Request{Query: "first"})
	if err != nil {
		t.Fatalf("first ProcessQuery failed: %v", err)
	}

	second, err := eng.ProcessQuery(context.Background(), Request{
		Query:          "second",
		ConversationID: first.ConversationID,
	})
	if err != nil {
		t.Fatalf("second ProcessQuery failed: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation ID changed: %q -> %q", first.ConversationID, second.ConversationID)
	}

	conv, err := store.GetConversation(context.Background(), first.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want 4", len(conv.Messages))
	}
	wantContents := []string{"first", "hello again", "second", "hello again"}
	for i, want := range wantContents {
		if conv.Messages[i].Content != want {
			t.Errorf("Messages[%d].Content = %q, want %q", i, conv.Messages[i].Content, want)
		}
	}
}

func TestProcessQuery_ClientSuppliedConversationID(t *testing.T) {
	p := &routeProvider{oracleContent: `{"tools": []}`, synthContent: "ok"}
	eng, store := newTestEngine(t, p)

	result, err := eng.ProcessQuery(context.Background(), Request{
		Query:          "hi",
		ConversationID: "conv_clientchosen",
	})
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}
	if result.ConversationID != "conv_clientchosen" {
		t.Errorf("ConversationID = %q, want conv_clientchosen", result.ConversationID)
	}

	if _, err := store.GetConversation(context.Background(), "conv_clientchosen"); err != nil {
		t.Errorf("conversation was not created under the supplied ID: %v", err)
	}
}

func TestProcessQuery_NoToolsSelected(t *testing.T) {
	p := &mockProvider{replies: []mockReply{
		{content: `{"tools": [], "reasoning": "general knowledge"}`},
		{content: "Paris."},
	}}
	eng, _ := newTestEngine(t, p)

	result, err := eng.ProcessQuery(context.Background(), Request{Query: "capital of France"})
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}
	if len(result.ToolsUsed) != 0 {
		t.Errorf("ToolsUsed = %v, want empty", result.ToolsUsed)
	}
	if result.ToolsUsed == nil {
		t.Error("ToolsUsed should be an empty slice, not nil")
	}
	if len(result.ToolResults) != 0 {
		t.Errorf("ToolResults = %v, want empty", result.ToolResults)
	}
	if result.Answer != "Paris." {
		t.Errorf("Answer = %q, want Paris.", result.Answer)
	}
}

func TestProcessQuery_RepeatedToolCollapsesToLastResult(t *testing.T) {
	n := 0
	echo := newMockCapability("echo", map[string]tools.ParameterSpec{
		"text": {Type: tools.TypeString, Required: true},
	}, func(_ context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
		n++
		return tools.OK("echo", fmt.Sprintf("call %d: %v", n, params["text"]))
	})

	p := &mockProvider{replies: []mockReply{
		{content: selection(
			`{"name": "echo", "params": {"text": "one"}}`,
			`{"name": "echo", "params": {"text": "two"}}`,
		)},
		{content: "done"},
	}}
	eng, _ := newTestEngine(t, p, echo)

	result, err := eng.ProcessQuery(context.Background(), Request{Query: "say things"})
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	// The ordered list keeps both invocations; the map keeps the last.
	if len(result.ToolsUsed) != 2 {
		t.Fatalf("ToolsUsed = %v, want two entries", result.ToolsUsed)
	}
	last := result.ToolResults["echo"]
	if last.Payload != "call 2: two" {
		t.Errorf("ToolResults[echo].Payload = %v, want the second call's result", last.Payload)
	}
}

func TestProcessQuery_ChainedToolAppearsAfterTrigger(t *testing.T) {
	search := newMockCapability("web_search", map[string]tools.ParameterSpec{
		"query": {Type: tools.TypeString, Required: true},
	}, func(_ context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
		return tools.OK("web_search", map[string]any{
			"query": params["query"],
			"results": []any{
				map[string]any{"title": "Report", "link": "https://example.com/annual.PDF", "snippet": "…"},
			},
			"count": 1,
		})
	})
	pdf := newMockCapability("pdf_parser", map[string]tools.ParameterSpec{
		"url": {Type: tools.TypeString},
	}, nil)

	p := &mockProvider{replies: []mockReply{
		{content: selection(`{"name": "web_search", "params": {"query": "annual report"}}`)},
		{content: "summarized"},
	}}
	eng, _ := newTestEngine(t, p, search, pdf)

	result, err := eng.ProcessQuery(context.Background(), Request{Query: "find the annual report"})
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	want := []string{"web_search", "pdf_parser"}
	if len(result.ToolsUsed) != len(want) {
		t.Fatalf("ToolsUsed = %v, want %v", result.ToolsUsed, want)
	}
	for i, name := range want {
		if result.ToolsUsed[i] != name {
			t.Errorf("ToolsUsed[%d] = %q, want %q", i, result.ToolsUsed[i], name)
		}
	}
	if _, ok := result.ToolResults["pdf_parser"]; !ok {
		t.Error("ToolResults missing the chained pdf_parser entry")
	}

	// The chained invocation targeted the matched link and carried the
	// search-result provenance.
	got := pdf.call(t, 0)
	if got.params["url"] != "https://example.com/annual.PDF" {
		t.Errorf("chained url = %v, want the PDF link", got.params["url"])
	}
	if got.source != "search_result" {
		t.Errorf("chained source = %q, want search_result", got.source)
	}
}

func TestProcessQuery_CancelledRunAppendsNoAssistantMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	probe := newMockCapability("probe", nil, func(_ context.Context, _ map[string]any, _ *tools.RunContext) tools.Result {
		cancel() // the caller walks away mid-run
		return tools.OK("probe", "done")
	})

	p := &routeProvider{
		oracleContent: selection(`{"name": "probe", "params": {}}`),
		synthContent:  "should never be stored",
	}
	eng, store := newTestEngine(t, p, probe)

	_, err := eng.ProcessQuery(ctx, Request{Query: "q", ConversationID: "conv_cancelled"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	conv, err := store.GetConversation(context.Background(), "conv_cancelled")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1 (user message only)", len(conv.Messages))
	}
	if conv.Messages[0].Role != api.RoleUser {
		t.Errorf("Messages[0].Role = %q, want user", conv.Messages[0].Role)
	}
}

func TestProcessQuery_SerializesSameConversation(t *testing.T) {
	var active, maxActive atomic.Int32

	probe := newMockCapability("probe", nil, func(_ context.Context, _ map[string]any, _ *tools.RunContext) tools.Result {
		cur := active.Add(1)
		for {
			m := maxActive.Load()
			if cur <= m || maxActive.CompareAndSwap(m, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return tools.OK("probe", "done")
	})

	p := &routeProvider{
		oracleContent: selection(`{"name": "probe", "params": {}}`),
		synthContent:  "ok",
	}
	eng, _ := newTestEngine(t, p, probe)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.ProcessQuery(context.Background(), Request{
				Query:          "q",
				ConversationID: "conv_serial",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("run %d failed: %v", i, err)
		}
	}
	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrent tool executions = %d, want 1 (runs must serialize)", got)
	}
	if got := probe.callCount(); got != 4 {
		t.Errorf("tool executed %d times, want 4", got)
	}
}

func TestProcessQuery_DistinctConversationsRunInParallel(t *testing.T) {
	entered := make(chan struct{}, 2)
	release := make(chan struct{})

	probe := newMockCapability("probe", nil, func(_ context.Context, _ map[string]any, _ *tools.RunContext) tools.Result {
		entered <- struct{}{}
		<-release
		return tools.OK("probe", "done")
	})

	p := &routeProvider{
		oracleContent: selection(`{"name": "probe", "params": {}}`),
		synthContent:  "ok",
	}
	eng, _ := newTestEngine(t, p, probe)

	var wg sync.WaitGroup
	for _, id := range []string{"conv_par_a", "conv_par_b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := eng.ProcessQuery(context.Background(), Request{Query: "q", ConversationID: id}); err != nil {
				t.Errorf("ProcessQuery(%s) failed: %v", id, err)
			}
		}(id)
	}

	// Both runs must reach their tool concurrently.
	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("distinct conversations did not run in parallel")
		}
	}
	close(release)
	wg.Wait()
}

func TestConvLocks_DropsIdleEntries(t *testing.T) {
	locks := newConvLocks()

	unlock := locks.lock("conv_x")
	unlock()

	locks.mu.Lock()
	n := len(locks.locks)
	locks.mu.Unlock()

	if n != 0 {
		t.Errorf("lock map has %d entries after release, want 0", n)
	}
}
