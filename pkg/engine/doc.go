// Package engine implements the query pipeline for werkbank. One run
// flows select -> execute -> synthesize: the decision oracle adapter asks
// the reasoning backend which capabilities to invoke, the execution engine
// runs them sequentially with conditional document-extraction chaining,
// and the response synthesizer turns the collected results into the final
// answer. The Engine owns conversation history through storage.Store and
// serializes runs that share a conversation ID.
package engine
