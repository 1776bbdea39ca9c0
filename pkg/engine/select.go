package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/observability"
	"github.com/werkbank-dev/werkbank/pkg/provider"
	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// oracleSystemPrompt instructs the reasoning backend to pick tools and
// reply with a single JSON object.
const oracleSystemPrompt = `You are an AI assistant that decides which tools to use to answer a query.
Select only the tools that are necessary to answer the query effectively.

Reply with a JSON object in this format:
{
    "tools": [
        {
            "name": "tool_name",
            "params": {
                "param1": "value1",
                "param2": "value2"
            }
        }
    ],
    "reasoning": "Your step-by-step reasoning for selecting these tools"
}`

// oracleSelection mirrors the JSON shape the oracle replies with.
type oracleSelection struct {
	Tools []struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	} `json:"tools"`
	Reasoning string `json:"reasoning"`
}

// selectTools asks the decision oracle which capabilities to run for the
// query. Oracle failures never propagate: any transport error or
// unparsable reply yields the deterministic fallback selection, so the
// pipeline keeps answering while the oracle is down.
func (e *Engine) selectTools(ctx context.Context, query string) []tools.Invocation {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("select").Observe(time.Since(start).Seconds())
	}()

	specs := e.registry.Specs()
	specJSON, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		slog.Error("marshaling tool specs", "error", err)
		return e.fallbackSelection(query)
	}

	userPrompt := fmt.Sprintf(
		"Query: %s\n\nAvailable tools:\n%s\n\nSelect the appropriate tools and parameters to answer the query.",
		query, specJSON,
	)

	resp, err := e.provider.Complete(ctx, &provider.Request{
		Messages: []provider.Message{
			{Role: "system", Content: oracleSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: e.cfg.oracleTemperature(),
		JSONMode:    true,
	})
	if err != nil {
		slog.Warn("oracle call failed, using fallback selection", "error", err)
		return e.fallbackSelection(query)
	}

	var sel oracleSelection
	if err := json.Unmarshal([]byte(resp.Content), &sel); err != nil {
		slog.Warn("oracle reply is not valid JSON, using fallback selection", "error", err)
		return e.fallbackSelection(query)
	}

	if sel.Reasoning != "" {
		slog.Debug("oracle reasoning", "reasoning", sel.Reasoning)
	}

	searchTool := e.cfg.searchTool()
	invs := make([]tools.Invocation, 0, len(sel.Tools))
	for _, t := range sel.Tools {
		// Selections naming unregistered tools are dropped silently; the
		// oracle occasionally hallucinates names.
		if !e.registry.Has(t.Name) {
			slog.Warn("oracle selected unregistered tool, skipping", "tool", t.Name)
			continue
		}

		params := t.Params
		if params == nil {
			params = map[string]any{}
		}
		if t.Name == searchTool {
			if _, ok := params["query"]; !ok {
				params["query"] = query
			}
		}

		invs = append(invs, tools.Invocation{Tool: t.Name, Params: params})
	}

	if max := e.cfg.maxSelections(); len(invs) > max {
		slog.Warn("oracle selected too many tools, truncating",
			"selected", len(invs),
			"max", max,
		)
		invs = invs[:max]
	}

	return invs
}

// fallbackSelection is the selection used when the oracle is unavailable:
// search with the raw query when the search capability is registered,
// otherwise nothing.
func (e *Engine) fallbackSelection(query string) []tools.Invocation {
	observability.OracleFallbacksTotal.Inc()

	searchTool := e.cfg.searchTool()
	if e.registry.Has(searchTool) {
		return []tools.Invocation{{
			Tool:   searchTool,
			Params: map[string]any{"query": query},
		}}
	}
	return nil
}
