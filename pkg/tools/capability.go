package tools

import (
	"context"
	"fmt"
)

// ParamType is the structural type tag of a declared parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// ParameterSpec declares a single parameter of a capability: its structural
// type, whether it must be supplied, and optional enum/bounds/default
// constraints applied during validation.
type ParameterSpec struct {
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// CapabilitySpec describes a capability: its unique registry name, a
// human-readable description surfaced to the decision oracle, and its
// declared parameters. Immutable after registration.
type CapabilitySpec struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]ParameterSpec `json:"parameters"`
}

// Invocation is a concrete request to run one capability. It is produced
// by the decision oracle adapter or by conditional chaining, consumed
// exactly once, and never persisted.
type Invocation struct {
	Tool   string
	Params map[string]any
}

// Result is the outcome of one invocation. On success, Payload holds the
// tool's structured output; on failure it holds a human-readable
// diagnostic string, never a raw error value. The JSON shape is
// {"tool", "success", "result"}.
type Result struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Payload any    `json:"result"`
}

// OK builds a successful Result carrying the given payload.
func OK(tool string, payload any) Result {
	return Result{Tool: tool, Success: true, Payload: payload}
}

// Fail builds a failed Result carrying a diagnostic string.
func Fail(tool, diagnostic string) Result {
	return Result{Tool: tool, Success: false, Payload: diagnostic}
}

// Failf builds a failed Result with a formatted diagnostic.
func Failf(tool, format string, args ...any) Result {
	return Fail(tool, fmt.Sprintf(format, args...))
}

// FailErr builds a failed Result whose diagnostic is the error text.
func FailErr(tool string, err error) Result {
	return Fail(tool, err.Error())
}

// Diagnostic returns the failure message of an unsuccessful Result, or ""
// for a successful one.
func (r Result) Diagnostic() string {
	if r.Success {
		return ""
	}
	if s, ok := r.Payload.(string); ok {
		return s
	}
	return fmt.Sprint(r.Payload)
}

// Step pairs a tool name with the Result it produced. The execution engine
// emits steps in execution order; chained invocations appear immediately
// after the invocation that triggered them.
type Step struct {
	Tool   string
	Result Result
}

// RunContext carries the original query and the accumulated prior steps of
// the current pipeline run, so later tools can react to earlier outputs.
// It is rebuilt per query and never retained across queries.
type RunContext struct {
	// Query is the original user query.
	Query string

	// Steps holds the results collected so far in this run, in order.
	Steps []Step

	// Source marks how the invocation was produced (e.g. "search_result"
	// for a chained document extraction). Empty for oracle selections.
	Source string

	// FilePath is the resolved local path of an uploaded file referenced
	// by the request, or empty.
	FilePath string
}

// Capability is the contract every tool implements. Execute must never
// panic past its boundary and must report failures as Result values with
// Success=false and a non-empty diagnostic.
type Capability interface {
	// Spec returns the immutable declaration of this capability.
	Spec() CapabilitySpec

	// Execute runs the capability with validated parameters. The run
	// context exposes the query and prior results of the current run.
	Execute(ctx context.Context, params map[string]any, run *RunContext) Result
}

// LinkLister is implemented by result payloads that expose outbound links
// (search results in particular). The execution engine scans these links
// for conditional document-extraction chaining.
type LinkLister interface {
	Links() []string
}
