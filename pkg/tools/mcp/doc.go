// Package mcp connects to Model Context Protocol servers and surfaces
// their tools as pipeline capabilities.
//
// At startup every configured server is dialed and its tools are
// discovered and registered with the capability registry, so the decision
// oracle sees them next to the built-ins. A server that cannot be reached
// or enumerated is logged and skipped; startup proceeds with whatever
// capabilities remain. When a remote tool name collides with an already
// registered capability, the tool is registered under a server-prefixed
// name instead.
//
// Execution proxies the call over the MCP session: the tool's declared
// JSON schema is converted into the capability parameter contract so the
// registry validates invocations up front, and a response flagged isError
// surfaces as a failed result.
package mcp
