// Package provider defines the protocol-agnostic interface for the
// reasoning service behind the decision oracle and the response
// synthesizer. The adapter implementation (openaicompat) handles its own
// backend protocol translation internally. The interface operates on this
// package's own types (Request, Response), keeping backend protocol
// details invisible to the engine.
package provider
