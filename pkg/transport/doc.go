// Package transport defines the boundary between the query pipeline and
// the protocols that carry it. The pipeline side is expressed as small
// consumer interfaces (QueryRunner, ConversationStore, UploadStore) so
// protocol adapters never depend on concrete engine or storage types, and
// the protocol side gets shared plumbing: API error mapping, request-ID
// propagation, panic recovery, and request logging as composable
// net/http middleware.
//
// The HTTP adapter lives in the http subpackage. Middleware composes
// outermost-first:
//
//	handler := transport.Chain(
//		transport.Recovery(),
//		transport.RequestID(),
//		transport.Logging(logger),
//	)(mux)
//
// Handlers report failures as *api.APIError; WriteAPIError maps the error
// type to an HTTP status and renders the canonical error envelope.
package transport
