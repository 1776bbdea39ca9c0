package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/observability"
	"github.com/werkbank-dev/werkbank/pkg/provider"
	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// synthSystemPrompt guides the final answer generation. The tool results
// must flow into the answer without the tools themselves showing through.
const synthSystemPrompt = `You are a helpful AI assistant that uses tools to answer questions accurately.

When creating your response:
1. Use the information from tool results to formulate an accurate answer
2. Be conversational and helpful
3. If tools were used, incorporate that information naturally
4. If tools failed or didn't provide useful information, acknowledge that
5. If you don't know something, be honest about it

Do not reveal the specific tools that were used in your response.
Do not mention "tool results" explicitly - incorporate the information naturally.`

// synthesize turns the query and collected tool results into the final
// answer. Synthesis failures never propagate past this boundary: the
// deterministic fallback string is returned instead and history still
// gets updated.
func (e *Engine) synthesize(ctx context.Context, query string, steps []tools.Step) string {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("synthesize").Observe(time.Since(start).Seconds())
	}()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	if len(steps) == 0 {
		sb.WriteString("No tools were used for this query")
	} else {
		sb.WriteString("Tool results:\n")
		for _, step := range steps {
			sb.WriteString(formatStep(step))
		}
	}

	resp, err := e.provider.Complete(ctx, &provider.Request{
		Messages: []provider.Message{
			{Role: "system", Content: synthSystemPrompt},
			{Role: "user", Content: sb.String()},
		},
		Temperature: e.cfg.synthesizerTemperature(),
	})
	if err != nil {
		slog.Error("synthesis failed", "error", err)
		return "An error occurred while generating the response: " + err.Error()
	}

	return resp.Content
}

// formatStep renders one step as a **name**: block with the result JSON.
func formatStep(step tools.Step) string {
	data, err := json.MarshalIndent(step.Result, "", "  ")
	if err != nil {
		return fmt.Sprintf("**%s**:\n%v\n\n", step.Tool, step.Result.Payload)
	}
	return fmt.Sprintf("**%s**:\n%s\n\n", step.Tool, data)
}
