// Package openaicompat implements provider.Provider against any
// OpenAI-compatible Chat Completions backend. It handles request
// serialization (including JSON-mode response formats), response parsing,
// and error mapping.
package openaicompat
