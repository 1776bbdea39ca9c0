// Package api defines the wire-level types for the Werkbank query service.
//
// This package provides the request/response shapes of the HTTP surface
// (chat, conversations, uploads, health), the structured error envelope,
// request validation, and ID generation for conversations, files, and
// tool calls.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O. All types produce the JSON wire format consumed by the
// transport layer.
//
// Core types:
//   - [Message]: One conversation turn (role + content)
//   - [ChatRequest]: Client query against a conversation
//   - [ChatResponse]: Final answer plus the tool trace for one query
//   - [APIError]: Structured error with type, code, param, and message
package api
