package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// capability adapts one discovered MCP tool to the capability contract.
// The registered name may differ from the remote tool name when a
// conflict forced a server prefix.
type capability struct {
	name   string
	remote string
	client *MCPClient
	spec   tools.CapabilitySpec
}

var _ tools.Capability = (*capability)(nil)

func (c *capability) Spec() tools.CapabilitySpec {
	return c.spec
}

func (c *capability) Execute(ctx context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
	result, err := c.client.CallTool(ctx, c.remote, params)
	if err != nil {
		return tools.FailErr(c.name, err)
	}

	text := textContent(result)
	if result.IsError {
		if text == "" {
			text = "tool reported an error without details"
		}
		return tools.Fail(c.name, text)
	}
	return tools.OK(c.name, decodePayload(text))
}

// textContent joins the text parts of a tool result. Non-text content
// (images, resources) is ignored.
func textContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// decodePayload keeps structured tool output structured: text that parses
// as JSON becomes the decoded value, anything else stays a plain string.
func decodePayload(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}
