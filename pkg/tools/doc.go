// Package tools defines the capability contract for the Werkbank pipeline.
// It provides the Capability interface that pluggable tool implementations
// satisfy, the CapabilitySpec/ParameterSpec declaration types, parameter
// validation against declared specs, and the Result/Invocation/RunContext
// types that flow through the execution engine.
//
// This package depends only on the Go standard library and performs no I/O.
package tools
