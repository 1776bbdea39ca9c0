package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/observability"
	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// executeTools runs the selected invocations in order. Every failure mode
// (validation, execution error, panic) surfaces as a failed step with a
// diagnostic and the run continues; a single broken tool never sinks the
// pipeline. After each successful search-class result, document links may
// chain one extraction invocation appended right after its trigger.
func (e *Engine) executeTools(ctx context.Context, invs []tools.Invocation, query, filePath string) []tools.Step {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("execute").Observe(time.Since(start).Seconds())
	}()

	run := &tools.RunContext{Query: query, FilePath: filePath}

	for _, inv := range invs {
		if ctx.Err() != nil {
			slog.Debug("run cancelled, skipping remaining tools", "tool", inv.Tool)
			break
		}

		e.injectFilePath(&inv, filePath)

		slog.Info("executing tool", "tool", inv.Tool, "params", inv.Params)
		result := e.registry.Execute(ctx, inv, run)
		if !result.Success {
			slog.Warn("tool failed",
				"tool", inv.Tool,
				"diagnostic", result.Diagnostic(),
			)
		}
		run.Steps = append(run.Steps, tools.Step{Tool: inv.Tool, Result: result})

		if chained, ok := e.chainExtraction(ctx, result, run); ok {
			run.Steps = append(run.Steps, chained)
		}
	}

	return run.Steps
}

// injectFilePath points file-accepting tools at the uploaded file when the
// oracle did not pick a source itself.
func (e *Engine) injectFilePath(inv *tools.Invocation, filePath string) {
	if filePath == "" {
		return
	}
	c, ok := e.registry.Lookup(inv.Tool)
	if !ok {
		return
	}
	if _, accepts := c.Spec().Parameters["file_path"]; !accepts {
		return
	}
	if inv.Params == nil {
		inv.Params = map[string]any{}
	}
	if _, ok := inv.Params["file_path"]; ok {
		return
	}
	if _, ok := inv.Params["url"]; ok {
		return
	}
	inv.Params["file_path"] = filePath
}

// chainExtraction inspects a search result for document links and, when
// the extraction capability is registered and a link matches a configured
// document extension, executes one extraction invocation on the first
// match. At most one extraction is chained per search result set.
func (e *Engine) chainExtraction(ctx context.Context, trigger tools.Result, run *tools.RunContext) (tools.Step, bool) {
	if trigger.Tool != e.cfg.searchTool() || !trigger.Success {
		return tools.Step{}, false
	}

	extraction := e.cfg.extractionTool()
	if !e.registry.Has(extraction) {
		return tools.Step{}, false
	}

	link, ok := firstDocumentLink(extractLinks(trigger.Payload), e.cfg.documentExtensions())
	if !ok {
		return tools.Step{}, false
	}

	slog.Info("document link in search results, chaining extraction",
		"tool", extraction,
		"url", link,
	)

	// The chained call gets a fresh context marked with its provenance,
	// not the accumulated steps.
	chainedRun := &tools.RunContext{Query: run.Query, Source: "search_result"}
	inv := tools.Invocation{Tool: extraction, Params: map[string]any{"url": link}}

	result := e.registry.Execute(ctx, inv, chainedRun)
	if !result.Success {
		slog.Warn("chained extraction failed",
			"tool", extraction,
			"diagnostic", result.Diagnostic(),
		)
	}

	return tools.Step{Tool: extraction, Result: result}, true
}

// extractLinks pulls outbound links from a search result payload. Typed
// payloads expose them via tools.LinkLister; generic map payloads (MCP
// tools and decoded JSON) are scanned for the conventional
// results[].link shape.
func extractLinks(payload any) []string {
	if ll, ok := payload.(tools.LinkLister); ok {
		return ll.Links()
	}

	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m["results"].([]any)
	if !ok {
		return nil
	}

	var links []string
	for _, r := range raw {
		entry, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if link, ok := entry["link"].(string); ok && link != "" {
			links = append(links, link)
		}
	}
	return links
}

// firstDocumentLink returns the first link whose lowercase form ends in
// one of the document extensions.
func firstDocumentLink(links, extensions []string) (string, bool) {
	for _, link := range links {
		lower := strings.ToLower(link)
		for _, ext := range extensions {
			if strings.HasSuffix(lower, ext) {
				return link, true
			}
		}
	}
	return "", false
}
